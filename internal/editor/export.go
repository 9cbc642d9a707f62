package editor

import (
	"context"
	"fmt"
	"image/color"

	"github.com/dgallion1/docedit/internal/document"
	"github.com/dgallion1/docedit/internal/edits"
)

// ExportResult is the serialized output document.
type ExportResult struct {
	Data    []byte
	Applied int
	Skipped int
}

// Export replays every recorded edit onto a fresh copy of the original
// bytes and serializes it. Edits whose page or fragment no longer exists,
// or whose fragment text changed since the edit was recorded, are skipped.
func (s *Session) Export(ctx context.Context) (ExportResult, error) {
	var res ExportResult
	err := s.do(ctx, "export", func(ctx context.Context) error {
		var err error
		res, err = s.exportLocked(ctx)
		return err
	})
	return res, err
}

func (s *Session) exportLocked(ctx context.Context) (ExportResult, error) {
	if s.data == nil || s.handle == nil {
		return ExportResult{}, ErrNoDocument
	}
	overlay := s.overlay
	if overlay.Empty() {
		return ExportResult{}, ErrNothingToExport
	}

	libs, err := s.loader.Ensure(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %w", ErrLibraries, err)
	}
	out, err := libs.Mutator.Load(ctx, s.data)
	if err != nil {
		return ExportResult{}, fmt.Errorf("load output document: %w", err)
	}

	var res ExportResult
	for _, page := range overlay.Pages() {
		applied, skipped, err := s.applyPage(ctx, out, overlay, page)
		if err != nil {
			return ExportResult{}, err
		}
		res.Applied += applied
		res.Skipped += skipped
	}

	data, err := out.Save(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("save output document: %w", err)
	}
	res.Data = data
	s.log.Info("document exported", "applied", res.Applied, "skipped", res.Skipped, "bytes", len(data))
	return res, nil
}

func (s *Session) applyPage(ctx context.Context, out document.OutputDocument, overlay edits.Overlay, page int) (applied, skipped int, err error) {
	indices := overlay.Indices(page)
	idx := page - 1
	if idx < 0 || idx >= out.PageCount() {
		s.log.Warn("skipping edits for missing page", "page", page, "edits", len(indices))
		return 0, len(indices), nil
	}

	size, err := out.PageSize(idx)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d size: %w", page, err)
	}
	// Scale 1 keeps the display zoom out of output coordinates.
	frags, err := s.handle.TextContent(ctx, page, 1)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text from page %d: %w", page, err)
	}

	for _, i := range indices {
		e, _ := overlay.Lookup(page, i)
		if i >= len(frags) {
			s.log.Warn("skipping stale edit", "page", page, "index", i, "fragments", len(frags))
			skipped++
			continue
		}
		f := frags[i]
		if e.Original != "" && e.Original != f.Text {
			s.log.Warn("skipping edit whose fragment changed", "page", page, "index", i)
			skipped++
			continue
		}

		x, y := OutputPosition(f, size.Height)
		if err := out.DrawRectangle(idx, document.Rect{X: x, Y: y, Width: f.Width, Height: f.Height}, color.White); err != nil {
			return 0, 0, fmt.Errorf("cover fragment %d on page %d: %w", i, page, err)
		}
		opts := document.TextOptions{
			X:     x,
			Y:     y,
			Size:  f.Height * s.opts.FontScale,
			Font:  document.FontHelvetica,
			Color: color.Black,
		}
		if err := out.DrawText(idx, e.Text, opts); err != nil {
			return 0, 0, fmt.Errorf("draw text for fragment %d on page %d: %w", i, page, err)
		}
		applied++
	}
	return applied, skipped, nil
}

// OutputPosition converts a fragment's top-left-origin translation into the
// bottom-left-origin coordinates of a page of the given height.
func OutputPosition(f document.Fragment, pageHeight float64) (x, y float64) {
	return f.Transform[4], pageHeight - f.Transform[5]
}
