package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgallion1/docedit/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// Rasterizer paints pages with pdftoppm (poppler-utils) and extracts
// positioned text with ledongthuc/pdf.
type Rasterizer struct {
	mu     sync.RWMutex
	worker string
}

func New(worker string) *Rasterizer {
	return &Rasterizer{worker: worker}
}

func (r *Rasterizer) WorkerPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.worker
}

func (r *Rasterizer) SetWorkerPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = path
}

// Open parses data. The bytes are also spooled to a temp file because
// pdftoppm only reads from disk.
func (r *Rasterizer) Open(ctx context.Context, data []byte) (document.Handle, error) {
	reader, err := newReader(data)
	if err != nil {
		return nil, err
	}
	if reader.NumPage() == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	tmp, err := os.CreateTemp("", "docedit-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	return &Handle{
		reader: reader,
		path:   tmp.Name(),
		worker: r.WorkerPath(),
	}, nil
}

func newReader(data []byte) (reader *pdflib.Reader, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			reader, err = nil, fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err = pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return reader, nil
}

// Handle is an opened document.
type Handle struct {
	reader *pdflib.Reader
	path   string
	worker string
}

func (h *Handle) NumPages() int { return h.reader.NumPage() }

func (h *Handle) page(n int) (pdflib.Page, error) {
	if n < 1 || n > h.reader.NumPage() {
		return pdflib.Page{}, fmt.Errorf("page %d out of range [1,%d]", n, h.reader.NumPage())
	}
	p := h.reader.Page(n)
	if p.V.IsNull() {
		return pdflib.Page{}, fmt.Errorf("page %d is missing", n)
	}
	return p, nil
}

func (h *Handle) PageSize(n int) (document.PageSize, error) {
	p, err := h.page(n)
	if err != nil {
		return document.PageSize{}, err
	}
	return mediaBox(p.V), nil
}

// Paint renders page n at scale via pdftoppm. Scale 1 is 72 DPI.
func (h *Handle) Paint(ctx context.Context, n int, scale float64) (image.Image, error) {
	if _, err := h.page(n); err != nil {
		return nil, err
	}
	if h.worker == "" {
		return nil, fmt.Errorf("rasterizer worker not configured")
	}

	tmpDir, err := os.MkdirTemp("", "docedit-page-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(n)
	cmd := exec.CommandContext(ctx, h.worker,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.FormatFloat(72*scale, 'f', 2, 64),
		"-singlefile",
		h.path,
		prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(out))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	return img, nil
}

// TextContent extracts the page's text fragments at scale. Fragment order is
// the content-stream order and does not depend on scale.
func (h *Handle) TextContent(ctx context.Context, n int, scale float64) (frags []document.Fragment, err error) {
	p, err := h.page(n)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			frags, err = nil, fmt.Errorf("extract text from page %d: %v", n, rec)
		}
	}()

	size := mediaBox(p.V)
	runs := groupGlyphs(p.Content().Text)
	return fragmentsAt(runs, size.Height, scale), nil
}

func (h *Handle) Close() error {
	return os.Remove(h.path)
}

// mediaBox walks up the page tree for an inherited MediaBox. Letter size is
// used when none is present.
func mediaBox(v pdflib.Value) document.PageSize {
	for node := v; !node.IsNull(); node = node.Key("Parent") {
		box := node.Key("MediaBox")
		if box.IsNull() || box.Len() < 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w < 0 {
			w = -w
		}
		if h < 0 {
			h = -h
		}
		return document.PageSize{Width: w, Height: h}
	}
	return document.PageSize{Width: 612, Height: 792}
}
