package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"strconv"

	"github.com/dgallion1/docedit/internal/editor"
	"github.com/dgallion1/docedit/internal/edits"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRenderPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "invalid page number", http.StatusBadRequest)
		return
	}

	st := sess.State()
	if !st.HasDocument {
		writeActionError(w, editor.ErrNoDocument)
		return
	}
	if n < 1 || n > st.Total {
		jsonError(w, "page out of range", http.StatusNotFound)
		return
	}
	// A page that was never painted has no viewport; render it even if it
	// is the current page number.
	if n != st.Page || sess.CurrentPage().Viewport.Width == 0 {
		ctx, cancel := s.actionContext(r)
		defer cancel()
		if err := sess.RenderPage(ctx, n); err != nil {
			writeActionError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.CurrentPage())
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	img, err := sess.SurfaceImage()
	if err != nil {
		writeActionError(w, err)
		return
	}
	if img.Bounds().Empty() {
		writeActionError(w, editor.ErrNoDocument)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		jsonError(w, "failed to encode surface", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

type zoomRequest struct {
	Action string   `json:"action"`
	Zoom   *float64 `json:"zoom"`
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req zoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.actionContext(r)
	defer cancel()
	var err error
	switch {
	case req.Zoom != nil:
		err = sess.SetZoom(ctx, *req.Zoom)
	case req.Action == "in":
		err = sess.ZoomIn(ctx)
	case req.Action == "out":
		err = sess.ZoomOut(ctx)
	default:
		jsonError(w, `expected "zoom" or "action" of "in" or "out"`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.CurrentPage())
}

type editRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleRecordEdit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "invalid page number", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "invalid fragment index", http.StatusBadRequest)
		return
	}
	var req editRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == nil {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	if err := sess.RecordEdit(r.Context(), page, index, *req.Text); err != nil {
		writeActionError(w, err)
		return
	}

	resp := map[string]any{
		"page":  page,
		"index": index,
		"text":  *req.Text,
		"edits": sess.Overlay().Len(),
	}
	if page == sess.State().Page {
		if display, ok := sess.DisplayText(index); ok {
			resp["display"] = display
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type editsResponse struct {
	Version uint64                     `json:"version"`
	Count   int                        `json:"count"`
	Pages   map[int]map[int]edits.Edit `json:"pages"`
}

func (s *Server) handleListEdits(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	o := sess.Overlay()
	writeJSON(w, http.StatusOK, editsResponse{
		Version: o.Version(),
		Count:   o.Len(),
		Pages:   o.Snapshot(),
	})
}
