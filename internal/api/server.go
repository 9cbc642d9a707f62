package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docedit/internal/config"
	"github.com/dgallion1/docedit/internal/editor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docedit.
type Server struct {
	router  chi.Router
	manager *editor.Manager
	log     *slog.Logger
	cfg     config.Config
	ui      []byte
}

// NewServer creates and configures the HTTP server.
func NewServer(manager *editor.Manager, log *slog.Logger, cfg config.Config) (*Server, error) {
	ui, err := renderViewer(cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		manager: manager,
		log:     log,
		cfg:     cfg,
		ui:      ui,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handleViewer)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/document", s.handleLoadDocument)
			r.Get("/pages/{page}", s.handleRenderPage)
			r.Get("/surface.png", s.handleSurface)
			r.Post("/zoom", s.handleZoom)
			r.Put("/pages/{page}/fragments/{index}", s.handleRecordEdit)
			r.Get("/edits", s.handleListEdits)
			r.Post("/export", s.handleExport)
		})
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
