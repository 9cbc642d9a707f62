package document

import (
	"context"
	"image"
	"image/color"
	"math"
)

// Direction is the writing direction of a text fragment.
type Direction string

const (
	LTR Direction = "ltr"
	TTB Direction = "ttb"
)

// FontHelvetica names the standard font replacement text is drawn with.
const FontHelvetica = "Helvetica"

// Transform is a 2D affine matrix [a b c d e f]. Indices 4 and 5 hold the
// translation. Fragment transforms use a top-left origin.
type Transform [6]float64

// Fragment is one positioned string extracted from a page.
type Fragment struct {
	Text      string    `json:"text"`
	Dir       Direction `json:"dir"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Transform Transform `json:"transform"`
	FontName  string    `json:"font_name"`
}

// PageSize is a page's dimensions in points at scale 1.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the pixel size of a page rendered at a zoom factor.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// ViewportFor sizes a viewport for the page at the given scale.
func ViewportFor(size PageSize, scale float64) Viewport {
	return Viewport{
		Width:  int(math.Ceil(size.Width * scale)),
		Height: int(math.Ceil(size.Height * scale)),
		Scale:  scale,
	}
}

// Rasterizer parses document bytes into a paintable handle.
type Rasterizer interface {
	Open(ctx context.Context, data []byte) (Handle, error)
}

// Handle is a rasterizer's parsed representation of one document.
// Pages are numbered from 1.
type Handle interface {
	NumPages() int
	PageSize(page int) (PageSize, error)
	Paint(ctx context.Context, page int, scale float64) (image.Image, error)
	TextContent(ctx context.Context, page int, scale float64) ([]Fragment, error)
	Close() error
}

// Mutator loads document bytes into an editable output document.
type Mutator interface {
	Load(ctx context.Context, data []byte) (OutputDocument, error)
}

// Rect is an axis-aligned rectangle in bottom-left-origin coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// TextOptions positions a run of text in bottom-left-origin coordinates.
type TextOptions struct {
	X, Y  float64
	Size  float64
	Font  string
	Color color.Color
}

// OutputDocument is a mutable document produced by a Mutator.
// Pages are indexed from 0.
type OutputDocument interface {
	PageCount() int
	PageSize(index int) (PageSize, error)
	DrawRectangle(index int, r Rect, fill color.Color) error
	DrawText(index int, text string, opts TextOptions) error
	Save(ctx context.Context) ([]byte, error)
}

// Surface is the visual target a page is painted onto.
type Surface interface {
	Resize(width, height int)
	Paint(img image.Image) error
	Size() (width, height int)
	Image() image.Image
}
