package document

import (
	"image"
	"image/color"
	"testing"
)

func TestViewportFor_RoundsUp(t *testing.T) {
	vp := ViewportFor(PageSize{Width: 612, Height: 792}, 1.25)
	if vp.Width != 765 || vp.Height != 990 {
		t.Errorf("expected 765x990, got %dx%d", vp.Width, vp.Height)
	}

	vp = ViewportFor(PageSize{Width: 100.2, Height: 50.1}, 1)
	if vp.Width != 101 || vp.Height != 51 {
		t.Errorf("expected 101x51, got %dx%d", vp.Width, vp.Height)
	}
}

func TestImageSurface_ResizeAndPaint(t *testing.T) {
	s := NewImageSurface()
	if err := s.Paint(image.NewRGBA(image.Rect(0, 0, 4, 4))); err == nil {
		t.Fatal("expected error painting onto an empty surface")
	}

	s.Resize(20, 10)
	w, h := s.Size()
	if w != 20 || h != 10 {
		t.Fatalf("expected 20x10, got %dx%d", w, h)
	}

	src := image.NewRGBA(image.Rect(0, 0, 10, 5))
	red := color.RGBA{R: 255, A: 255}
	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, red)
		}
	}
	if err := s.Paint(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := color.RGBAModel.Convert(s.Image().At(10, 5)).(color.RGBA)
	if got.R < 200 || got.G > 50 {
		t.Errorf("expected scaled red pixel, got %+v", got)
	}
}

func TestImageSurface_ImageIsCopy(t *testing.T) {
	s := NewImageSurface()
	s.Resize(2, 2)
	img := s.Image().(*image.RGBA)
	img.Set(0, 0, color.Black)

	again := color.RGBAModel.Convert(s.Image().At(0, 0)).(color.RGBA)
	if again.A != 0 {
		t.Errorf("expected surface to be unaffected by edits to the copy, got %+v", again)
	}
}
