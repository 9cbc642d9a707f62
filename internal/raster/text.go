package raster

import (
	"math"
	"strings"

	"github.com/dgallion1/docedit/internal/document"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/font"
)

// run is a sequence of glyphs on one baseline in PDF user space
// (bottom-left origin, scale 1).
type run struct {
	font     string
	fontSize float64
	x, y     float64
	endX     float64
	// lastX is the reported position of the previous glyph, before any
	// width fallback was applied.
	lastX float64
	text  strings.Builder
}

const (
	baselineTolerance = 0.5
	// A horizontal gap wider than this fraction of the font size starts a
	// new fragment.
	maxGapRatio = 0.3
)

// groupGlyphs joins the per-glyph output of ledongthuc/pdf into runs.
func groupGlyphs(glyphs []pdflib.Text) []*run {
	var runs []*run
	var cur *run
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		x, w := place(cur, g)
		if cur != nil && continues(cur, g, x) {
			cur.text.WriteString(g.S)
			if end := x + w; end > cur.endX {
				cur.endX = end
			}
			cur.lastX = g.X
			continue
		}
		cur = &run{font: g.Font, fontSize: g.FontSize, x: x, y: g.Y, endX: x + w, lastX: g.X}
		cur.text.WriteString(g.S)
		runs = append(runs, cur)
	}

	out := runs[:0]
	for _, r := range runs {
		if strings.TrimSpace(r.text.String()) != "" {
			out = append(out, r)
		}
	}
	return out
}

// place returns the glyph's start and advance. ledongthuc/pdf reports a
// zero width for fonts without /Widths (the standard 14 usually) and then
// does not move the pen, so such glyphs are measured with core font
// metrics and laid out after the previous glyph of the same run.
func place(cur *run, g pdflib.Text) (x, w float64) {
	if g.W != 0 {
		return g.X, g.W
	}
	w = coreWidth(g.Font, g.S, g.FontSize)
	if cur != nil && sameLine(cur, g) && math.Abs(g.X-cur.lastX) <= baselineTolerance {
		return cur.endX, w
	}
	return g.X, w
}

// coreWidth measures s in the named standard font, or Helvetica when the
// font is not one of the standard 14.
func coreWidth(name, s string, size float64) float64 {
	if !font.IsCoreFont(name) {
		name = document.FontHelvetica
	}
	var units int
	for _, r := range s {
		units += font.CharWidth(name, r)
	}
	return float64(units) / 1000 * size
}

func sameLine(r *run, g pdflib.Text) bool {
	return g.Font == r.font && g.FontSize == r.fontSize && math.Abs(g.Y-r.y) <= baselineTolerance
}

func continues(r *run, g pdflib.Text, x float64) bool {
	if !sameLine(r, g) {
		return false
	}
	if x < r.endX-baselineTolerance {
		return false
	}
	return x-r.endX <= r.fontSize*maxGapRatio
}

// fragmentsAt converts runs to fragments in top-left-origin coordinates at
// the given scale.
func fragmentsAt(runs []*run, pageHeight, scale float64) []document.Fragment {
	frags := make([]document.Fragment, 0, len(runs))
	for _, r := range runs {
		size := r.fontSize * scale
		frags = append(frags, document.Fragment{
			Text:      r.text.String(),
			Dir:       document.LTR,
			Width:     (r.endX - r.x) * scale,
			Height:    size,
			Transform: document.Transform{size, 0, 0, size, r.x * scale, (pageHeight - r.y) * scale},
			FontName:  r.font,
		})
	}
	return frags
}
