package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth; empty disables it.
	APIKey string

	// Upload limits
	MaxUploadBytes int64

	// Sessions
	MaxSessions    int
	SessionTTL     time.Duration
	MaxConnections int

	// Rasterizer worker (pdftoppm); empty means look it up on PATH.
	PdftoppmPath  string
	RenderTimeout time.Duration

	// Zoom
	MinZoom     float64
	MaxZoom     float64
	ZoomStep    float64
	DefaultZoom float64

	// Export
	ExportFontScale float64
	ExportFilename  string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("DOCEDIT_API_KEY"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MaxSessions:    envInt("MAX_SESSIONS", 256),
		SessionTTL:     envDuration("SESSION_TTL", 30*time.Minute),
		MaxConnections: envInt("MAX_CONNECTIONS", 512),

		PdftoppmPath:  os.Getenv("PDFTOPPM_PATH"),
		RenderTimeout: envDuration("RENDER_TIMEOUT", 60*time.Second),

		MinZoom:     envFloat("MIN_ZOOM", 0.5),
		MaxZoom:     envFloat("MAX_ZOOM", 3.0),
		ZoomStep:    envFloat("ZOOM_STEP", 0.25),
		DefaultZoom: envFloat("DEFAULT_ZOOM", 1.0),

		ExportFontScale: envFloat("EXPORT_FONT_SCALE", 0.9),
		ExportFilename:  envOr("EXPORT_FILENAME", "edited.pdf"),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 512
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 60 * time.Second
	}
	if cfg.ZoomStep <= 0 {
		cfg.ZoomStep = 0.25
	}

	return cfg
}

func (c Config) Validate() error {
	if c.MinZoom <= 0 {
		return fmt.Errorf("MIN_ZOOM must be positive")
	}
	if c.MaxZoom < c.MinZoom {
		return fmt.Errorf("MAX_ZOOM (%v) is below MIN_ZOOM (%v)", c.MaxZoom, c.MinZoom)
	}
	if c.ZoomStep <= 0 {
		return fmt.Errorf("ZOOM_STEP must be positive")
	}
	if c.DefaultZoom < c.MinZoom || c.DefaultZoom > c.MaxZoom {
		return fmt.Errorf("DEFAULT_ZOOM (%v) is outside [%v, %v]", c.DefaultZoom, c.MinZoom, c.MaxZoom)
	}
	if c.ExportFontScale <= 0 || c.ExportFontScale > 1 {
		return fmt.Errorf("EXPORT_FONT_SCALE must be in (0, 1]")
	}
	if c.ExportFilename == "" {
		return fmt.Errorf("EXPORT_FILENAME is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
