package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docedit/internal/api"
	"github.com/dgallion1/docedit/internal/backend"
	"github.com/dgallion1/docedit/internal/config"
	"github.com/dgallion1/docedit/internal/document"
	"github.com/dgallion1/docedit/internal/editor"
	"github.com/dgallion1/docedit/internal/mutate"
	"github.com/dgallion1/docedit/internal/raster"
	"github.com/dgallion1/docedit/internal/stats"
	"golang.org/x/net/netutil"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backends are resolved on first use.
	loader := backend.NewLoader(backend.Sources{
		Rasterizer: func(ctx context.Context) (document.Rasterizer, error) {
			return raster.New(cfg.PdftoppmPath), nil
		},
		Mutator: func(ctx context.Context) (document.Mutator, error) {
			return mutate.New(), nil
		},
	}, "pdftoppm", log.With("component", "loader"))

	rec := stats.NewRecorder(time.Hour)
	opts := editor.Options{
		MinZoom:     cfg.MinZoom,
		MaxZoom:     cfg.MaxZoom,
		ZoomStep:    cfg.ZoomStep,
		DefaultZoom: cfg.DefaultZoom,
		FontScale:   cfg.ExportFontScale,
	}
	mgr := editor.NewManager(loader, opts, cfg.SessionTTL, cfg.MaxSessions, rec, log.With("component", "editor"))
	mgr.Start(ctx)

	srv, err := api.NewServer(mgr, log, cfg)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Error("listen failed", "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		mgr.Stop()
	}()

	log.Info("starting docedit", "port", cfg.Port, "max_connections", cfg.MaxConnections)
	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
