package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docedit/internal/editor"
	"github.com/go-chi/chi/v5"
)

// upload is a document received from the client.
type upload struct {
	filename    string
	contentType string
	data        []byte
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.NewSession()
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	// A document is optional on create.
	if r.ContentLength != 0 && r.Header.Get("Content-Type") != "" {
		up, status, err := s.readUpload(w, r)
		if err != nil {
			s.manager.Delete(sess.ID)
			jsonError(w, err.Error(), status)
			return
		}
		ctx, cancel := s.actionContext(r)
		defer cancel()
		if err := sess.LoadDocument(ctx, up.contentType, up.data); err != nil {
			s.log.Warn("initial load failed", "session", sess.ID, "filename", up.filename, "error", err)
			s.manager.Delete(sess.ID)
			writeActionError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": sess.State(),
		"page":    sess.CurrentPage(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.manager.Delete(id) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	up, status, err := s.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	ctx, cancel := s.actionContext(r)
	defer cancel()
	if err := sess.LoadDocument(ctx, up.contentType, up.data); err != nil {
		writeActionError(w, err)
		return
	}
	s.log.Info("document loaded", "session", sess.ID, "filename", up.filename, "bytes", len(up.data))
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess.State(),
		"page":    sess.CurrentPage(),
	})
}

// readUpload accepts either a multipart form with a "file" part or a raw
// request body. The declared content type is passed through unchanged.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, int, error) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	var up upload
	var src io.Reader
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return up, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			return up, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
		}
		defer file.Close()
		up.filename = sanitizeFilename(header.Filename)
		up.contentType = header.Header.Get("Content-Type")
		src = file
	} else {
		up.filename = "body"
		up.contentType = r.Header.Get("Content-Type")
		src = r.Body
	}

	data, err := io.ReadAll(io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return up, http.StatusBadRequest, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return up, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return up, http.StatusBadRequest, errors.New("file is empty")
	}
	up.data = data
	return up, 0, nil
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *editor.Session {
	sess := s.manager.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
	}
	return sess
}

// actionContext bounds a render, load or export so a stuck rasterizer
// cannot hold the session slot forever.
func (s *Server) actionContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RenderTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
}

func writeActionError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, editor.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNothingToExport),
		errors.Is(err, editor.ErrParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrBusy),
		errors.Is(err, editor.ErrLibraries):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
