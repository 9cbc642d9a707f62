package document

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// ImageSurface is an in-memory RGBA surface. Painted images are scaled to
// fill the surface.
type ImageSurface struct {
	mu  sync.RWMutex
	img *image.RGBA
}

func NewImageSurface() *ImageSurface {
	return &ImageSurface{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

// Resize replaces the backing image with a blank one of the given size.
func (s *ImageSurface) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (s *ImageSurface) Paint(src image.Image) error {
	if src == nil {
		return errors.New("nil image")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	if b.Empty() {
		return errors.New("surface has no area")
	}
	draw.Draw(s.img, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	if src.Bounds().Size() == b.Size() {
		draw.Draw(s.img, b, src, src.Bounds().Min, draw.Over)
		return nil
	}
	draw.CatmullRom.Scale(s.img, b, src, src.Bounds(), draw.Over, nil)
	return nil
}

func (s *ImageSurface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sz := s.img.Bounds().Size()
	return sz.X, sz.Y
}

// Image returns a copy of the current surface contents.
func (s *ImageSurface) Image() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}
