package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docedit/internal/backend"
	"github.com/dgallion1/docedit/internal/document"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testOptions = Options{
	MinZoom:     0.5,
	MaxZoom:     3,
	ZoomStep:    0.25,
	DefaultZoom: 1,
	FontScale:   0.9,
}

type fakeLoader struct {
	libs  backend.Libraries
	err   error
	calls atomic.Int32
}

func (l *fakeLoader) Ensure(ctx context.Context) (backend.Libraries, error) {
	l.calls.Add(1)
	if l.err != nil {
		return backend.Libraries{}, l.err
	}
	return l.libs, nil
}

type fakePage struct {
	size  document.PageSize
	frags []document.Fragment // at scale 1
}

type fakeRasterizer struct {
	mu      sync.Mutex
	opens   int
	openErr error
	// paintErr is given to every handle opened from now on.
	paintErr error
	// docs maps document bytes to the pages they parse into.
	docs map[string][]fakePage
	// handles records every handle returned, in order.
	handles []*fakeHandle
}

func (r *fakeRasterizer) Open(ctx context.Context, data []byte) (document.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	if r.openErr != nil {
		return nil, r.openErr
	}
	pages, ok := r.docs[string(data)]
	if !ok {
		return nil, errors.New("not a pdf")
	}
	h := &fakeHandle{pages: pages, paintErr: r.paintErr}
	r.handles = append(r.handles, h)
	return h, nil
}

type fakeHandle struct {
	mu       sync.Mutex
	pages    []fakePage
	paintErr error
	closed   bool
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	paints      atomic.Int32
}

func (h *fakeHandle) NumPages() int { return len(h.pages) }

func (h *fakeHandle) PageSize(n int) (document.PageSize, error) {
	if n < 1 || n > len(h.pages) {
		return document.PageSize{}, errors.New("page out of range")
	}
	return h.pages[n-1].size, nil
}

func (h *fakeHandle) Paint(ctx context.Context, n int, scale float64) (image.Image, error) {
	cur := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		prev := h.maxInFlight.Load()
		if cur <= prev || h.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	h.paints.Add(1)
	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	h.mu.Lock()
	err := h.paintErr
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	vp := document.ViewportFor(h.pages[n-1].size, scale)
	img := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	img.Set(0, 0, color.Black)
	return img, nil
}

func (h *fakeHandle) TextContent(ctx context.Context, n int, scale float64) ([]document.Fragment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 1 || n > len(h.pages) {
		return nil, errors.New("page out of range")
	}
	src := h.pages[n-1].frags
	out := make([]document.Fragment, len(src))
	for i, f := range src {
		f.Width *= scale
		f.Height *= scale
		for k := range f.Transform {
			f.Transform[k] *= scale
		}
		out[i] = f
	}
	return out, nil
}

func (h *fakeHandle) setFragments(page int, frags []document.Fragment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[page-1].frags = frags
}

func (h *fakeHandle) setPaintErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paintErr = err
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

type drawCall struct {
	kind  string
	index int
	rect  document.Rect
	text  string
	opts  document.TextOptions
}

type fakeMutator struct {
	loads   atomic.Int32
	loadErr error
	sizes   []document.PageSize
	last    *fakeOutput
}

func (m *fakeMutator) Load(ctx context.Context, data []byte) (document.OutputDocument, error) {
	m.loads.Add(1)
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.last = &fakeOutput{sizes: m.sizes, source: string(data)}
	return m.last, nil
}

type fakeOutput struct {
	sizes  []document.PageSize
	source string
	calls  []drawCall
	saved  bool
}

func (o *fakeOutput) PageCount() int { return len(o.sizes) }

func (o *fakeOutput) PageSize(i int) (document.PageSize, error) {
	if i < 0 || i >= len(o.sizes) {
		return document.PageSize{}, errors.New("index out of range")
	}
	return o.sizes[i], nil
}

func (o *fakeOutput) DrawRectangle(i int, r document.Rect, fill color.Color) error {
	o.calls = append(o.calls, drawCall{kind: "rect", index: i, rect: r})
	return nil
}

func (o *fakeOutput) DrawText(i int, text string, opts document.TextOptions) error {
	o.calls = append(o.calls, drawCall{kind: "text", index: i, text: text, opts: opts})
	return nil
}

func (o *fakeOutput) Save(ctx context.Context) ([]byte, error) {
	o.saved = true
	return []byte("%PDF-out:" + o.source), nil
}

func frag(text string, x, yTop, w, h float64) document.Fragment {
	return document.Fragment{
		Text:      text,
		Dir:       document.LTR,
		Width:     w,
		Height:    h,
		Transform: document.Transform{h, 0, 0, h, x, yTop},
		FontName:  "F1",
	}
}

var letter = document.PageSize{Width: 612, Height: 792}

// fixture wires a session to fakes with two known documents: "doc-a" (two
// pages) and "doc-b" (one page).
type fixture struct {
	sess   *Session
	loader *fakeLoader
	raster *fakeRasterizer
	mut    *fakeMutator
}

func newFixture() *fixture {
	raster := &fakeRasterizer{docs: map[string][]fakePage{
		"doc-a": {
			{size: letter, frags: []document.Fragment{
				{Text: "Hello", Dir: document.LTR, Width: 40, Height: 12, Transform: document.Transform{1, 0, 0, 1, 50, 700}, FontName: "F1"},
				frag("World", 100, 650, 35, 12),
			}},
			{size: letter, frags: []document.Fragment{
				frag("Second", 72, 100, 50, 14),
			}},
		},
		"doc-b": {
			{size: letter, frags: []document.Fragment{frag("Other", 10, 20, 30, 10)}},
		},
	}}
	mut := &fakeMutator{sizes: []document.PageSize{letter, letter}}
	loader := &fakeLoader{libs: backend.Libraries{Rasterizer: raster, Mutator: mut}}
	sess := NewSession("test", loader, testOptions, discardLogger(), nil)
	sess.AttachSurface(document.NewImageSurface())
	return &fixture{sess: sess, loader: loader, raster: raster, mut: mut}
}
