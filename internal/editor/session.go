package editor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"log/slog"
	"math"
	"mime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docedit/internal/backend"
	"github.com/dgallion1/docedit/internal/document"
	"github.com/dgallion1/docedit/internal/edits"
	"github.com/dgallion1/docedit/internal/stats"
)

// AcceptedContentType is the only MIME type LoadDocument accepts.
const AcceptedContentType = "application/pdf"

// LibraryLoader provides the external backends.
type LibraryLoader interface {
	Ensure(ctx context.Context) (backend.Libraries, error)
}

// Options tune zoom and export behavior.
type Options struct {
	MinZoom     float64
	MaxZoom     float64
	ZoomStep    float64
	DefaultZoom float64
	// FontScale sizes replacement text relative to the original fragment
	// height.
	FontScale float64
}

// Session is one user's document session. Every user action runs through a
// single-slot queue, so actions on the same session never interleave.
type Session struct {
	ID        string
	CreatedAt time.Time

	loader LibraryLoader
	opts   Options
	log    *slog.Logger
	stats  *stats.Recorder

	slot     chan struct{}
	loading  atomic.Bool
	lastUsed atomic.Int64

	// mu guards the fields below. Writers also hold the slot.
	mu        sync.RWMutex
	surface   document.Surface
	data      []byte
	hash      string
	handle    document.Handle
	page      int
	total     int
	zoom      float64
	viewport  document.Viewport
	fragments []document.Fragment
	overlay   edits.Overlay
}

// NewSession creates an empty session. rec may be nil.
func NewSession(id string, loader LibraryLoader, opts Options, log *slog.Logger, rec *stats.Recorder) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		loader:    loader,
		opts:      opts,
		log:       log.With("session_id", id),
		stats:     rec,
		slot:      make(chan struct{}, 1),
		zoom:      opts.DefaultZoom,
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// AttachSurface sets the surface pages are painted onto.
func (s *Session) AttachSurface(surface document.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
}

// IsLoading reports whether an action is in flight.
func (s *Session) IsLoading() bool { return s.loading.Load() }

// LastUsed returns when the session last finished an action.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// do runs fn while holding the session slot.
func (s *Session) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
	defer func() { <-s.slot }()

	s.loading.Store(true)
	defer s.loading.Store(false)

	start := time.Now()
	err := fn(ctx)
	if s.stats != nil {
		s.stats.Record(op, time.Since(start), err)
	}
	s.lastUsed.Store(time.Now().UnixNano())
	if err != nil {
		s.log.Warn("action failed", "op", op, "error", err)
	}
	return err
}

// LoadDocument replaces the session's document with data. Only
// AcceptedContentType is allowed; anything else is rejected before any
// backend call and leaves the session untouched. A document that fails to
// parse reverts the session to "no document"; one that parses but fails to
// render its first page leaves the previous document in place.
func (s *Session) LoadDocument(ctx context.Context, contentType string, data []byte) error {
	if !isAccepted(contentType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return s.do(ctx, "load", func(ctx context.Context) error {
		libs, err := s.loader.Ensure(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLibraries, err)
		}

		handle, err := libs.Rasterizer.Open(ctx, data)
		if err != nil {
			s.reset()
			return fmt.Errorf("%w: %w", ErrParse, err)
		}

		// Page 1 is produced against the new handle before anything is
		// committed.
		total := handle.NumPages()
		var first renderedPage
		if total >= 1 {
			first, err = s.preparePage(ctx, handle, 1, s.zoom)
			if err != nil {
				closeHandle(s.log, handle)
				return err
			}
		}

		s.mu.Lock()
		old := s.handle
		s.data = data
		s.hash = ContentHashHex(data)
		s.handle = handle
		s.page = 1
		s.total = total
		s.fragments = nil
		s.viewport = document.Viewport{}
		s.overlay = edits.Overlay{}
		s.mu.Unlock()
		closeHandle(s.log, old)

		if total >= 1 {
			if err := s.present(1, first); err != nil {
				s.reset()
				return err
			}
		}
		s.log.Info("document loaded", "pages", total, "bytes", len(data), "hash", s.hash[:16])
		return nil
	})
}

func isAccepted(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == AcceptedContentType
}

// reset reverts to the "no document" state.
func (s *Session) reset() {
	s.mu.Lock()
	old := s.handle
	s.data = nil
	s.hash = ""
	s.handle = nil
	s.page = 0
	s.total = 0
	s.fragments = nil
	s.viewport = document.Viewport{}
	s.overlay = edits.Overlay{}
	s.mu.Unlock()
	closeHandle(s.log, old)
}

func closeHandle(log *slog.Logger, h document.Handle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		log.Warn("close document handle", "error", err)
	}
}

// RenderPage paints page n at the current zoom and replaces the fragment
// list. It is a no-op when no document is loaded or n is out of range.
func (s *Session) RenderPage(ctx context.Context, n int) error {
	return s.do(ctx, "render", func(ctx context.Context) error {
		return s.renderLocked(ctx, n)
	})
}

// NextPage renders the page after the current one, if any.
func (s *Session) NextPage(ctx context.Context) error {
	return s.do(ctx, "render", func(ctx context.Context) error {
		return s.renderLocked(ctx, s.page+1)
	})
}

// PrevPage renders the page before the current one, if any.
func (s *Session) PrevPage(ctx context.Context) error {
	return s.do(ctx, "render", func(ctx context.Context) error {
		return s.renderLocked(ctx, s.page-1)
	})
}

// renderLocked must be called with the slot held. On failure the previous
// page state is kept.
func (s *Session) renderLocked(ctx context.Context, n int) error {
	if s.handle == nil || n < 1 || n > s.total {
		return nil
	}
	p, err := s.preparePage(ctx, s.handle, n, s.zoom)
	if err != nil {
		return err
	}
	return s.present(n, p)
}

// renderedPage is a painted page not yet shown.
type renderedPage struct {
	viewport  document.Viewport
	img       image.Image
	fragments []document.Fragment
}

// preparePage paints and extracts page n of h without touching session
// state.
func (s *Session) preparePage(ctx context.Context, h document.Handle, n int, zoom float64) (renderedPage, error) {
	s.mu.RLock()
	surface := s.surface
	s.mu.RUnlock()
	if surface == nil {
		return renderedPage{}, ErrNoSurface
	}

	size, err := h.PageSize(n)
	if err != nil {
		return renderedPage{}, fmt.Errorf("render page %d: %w", n, err)
	}
	img, err := h.Paint(ctx, n, zoom)
	if err != nil {
		return renderedPage{}, fmt.Errorf("render page %d: %w", n, err)
	}
	frags, err := h.TextContent(ctx, n, zoom)
	if err != nil {
		return renderedPage{}, fmt.Errorf("extract text from page %d: %w", n, err)
	}
	return renderedPage{viewport: document.ViewportFor(size, zoom), img: img, fragments: frags}, nil
}

// present paints p onto the surface and makes it the current page.
func (s *Session) present(n int, p renderedPage) error {
	s.mu.RLock()
	surface := s.surface
	s.mu.RUnlock()
	if surface == nil {
		return ErrNoSurface
	}
	surface.Resize(p.viewport.Width, p.viewport.Height)
	if err := surface.Paint(p.img); err != nil {
		return fmt.Errorf("paint page %d: %w", n, err)
	}

	s.mu.Lock()
	s.page = n
	s.viewport = p.viewport
	s.fragments = p.fragments
	s.mu.Unlock()
	return nil
}

// ZoomIn steps the zoom up and re-renders.
func (s *Session) ZoomIn(ctx context.Context) error {
	return s.do(ctx, "zoom", func(ctx context.Context) error {
		return s.zoomLocked(ctx, s.zoom+s.opts.ZoomStep)
	})
}

// ZoomOut steps the zoom down and re-renders.
func (s *Session) ZoomOut(ctx context.Context) error {
	return s.do(ctx, "zoom", func(ctx context.Context) error {
		return s.zoomLocked(ctx, s.zoom-s.opts.ZoomStep)
	})
}

// SetZoom sets the zoom (clamped) and re-renders.
func (s *Session) SetZoom(ctx context.Context, z float64) error {
	return s.do(ctx, "zoom", func(ctx context.Context) error {
		return s.zoomLocked(ctx, z)
	})
}

func (s *Session) zoomLocked(ctx context.Context, z float64) error {
	z = ClampZoom(z, s.opts.MinZoom, s.opts.MaxZoom)
	if z == s.zoom {
		return nil
	}
	prev := s.zoom
	s.mu.Lock()
	s.zoom = z
	s.mu.Unlock()

	if err := s.renderLocked(ctx, s.page); err != nil {
		s.mu.Lock()
		s.zoom = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

// ClampZoom limits z to [min, max], rounded to remove float drift.
func ClampZoom(z, min, max float64) float64 {
	z = math.Round(z*1e6) / 1e6
	if z < min {
		return min
	}
	if z > max {
		return max
	}
	return z
}

// RecordEdit sets the replacement text for fragment index on page. When the
// page is the one currently rendered, the fragment's text is kept as a
// fingerprint so export can detect that the index no longer points at it.
func (s *Session) RecordEdit(ctx context.Context, page, index int, text string) error {
	return s.do(ctx, "edit", func(ctx context.Context) error {
		if s.handle == nil {
			return ErrNoDocument
		}
		if page < 1 || page > s.total || index < 0 {
			return fmt.Errorf("%w: page %d index %d", ErrInvalidEdit, page, index)
		}

		e := edits.Edit{Text: text}
		if page == s.page && index < len(s.fragments) {
			e.Original = s.fragments[index].Text
		}

		s.mu.Lock()
		s.overlay = s.overlay.Set(page, index, e)
		s.mu.Unlock()
		return nil
	})
}

// DisplayText returns the text to show for fragment index on the current
// page.
func (s *Session) DisplayText(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.fragments) {
		return "", false
	}
	return edits.Resolve(s.overlay, s.page, index, s.fragments[index].Text), true
}

// FragmentView is a fragment as presented to the client.
type FragmentView struct {
	Index int `json:"index"`
	document.Fragment
	Display string `json:"display"`
	Edited  bool   `json:"edited"`
}

// PageView describes the currently rendered page.
type PageView struct {
	Page      int               `json:"page"`
	Total     int               `json:"total"`
	Zoom      float64           `json:"zoom"`
	Viewport  document.Viewport `json:"viewport"`
	Fragments []FragmentView    `json:"fragments"`
}

// CurrentPage returns the rendered page with display text resolved.
func (s *Session) CurrentPage() PageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]FragmentView, len(s.fragments))
	for i, f := range s.fragments {
		_, edited := s.overlay.Lookup(s.page, i)
		views[i] = FragmentView{
			Index:    i,
			Fragment: f,
			Display:  edits.Resolve(s.overlay, s.page, i, f.Text),
			Edited:   edited,
		}
	}
	return PageView{
		Page:      s.page,
		Total:     s.total,
		Zoom:      s.zoom,
		Viewport:  s.viewport,
		Fragments: views,
	}
}

// State is a JSON-safe summary of the session.
type State struct {
	ID          string    `json:"session_id"`
	HasDocument bool      `json:"has_document"`
	ContentHash string    `json:"content_hash,omitempty"`
	Page        int       `json:"page"`
	Total       int       `json:"total"`
	Zoom        float64   `json:"zoom"`
	Loading     bool      `json:"loading"`
	Edits       int       `json:"edits"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsed    time.Time `json:"last_used"`
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		ID:          s.ID,
		HasDocument: s.handle != nil,
		ContentHash: s.hash,
		Page:        s.page,
		Total:       s.total,
		Zoom:        s.zoom,
		Loading:     s.IsLoading(),
		Edits:       s.overlay.Len(),
		CreatedAt:   s.CreatedAt,
		LastUsed:    s.LastUsed(),
	}
}

// Overlay returns the current edit overlay.
func (s *Session) Overlay() edits.Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlay
}

// SurfaceImage returns a copy of the rendered surface.
func (s *Session) SurfaceImage() (image.Image, error) {
	s.mu.RLock()
	surface := s.surface
	s.mu.RUnlock()
	if surface == nil {
		return nil, ErrNoSurface
	}
	return surface.Image(), nil
}

// Close releases the document handle once any in-flight action finishes.
func (s *Session) Close() {
	s.slot <- struct{}{}
	defer func() { <-s.slot }()
	s.reset()
}

// CloseAsync closes the session in the background and returns a channel
// that is closed once the handle has been released.
func (s *Session) CloseAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Close()
	}()
	return done
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
