package api

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dgallion1/docedit/internal/config"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	//go:embed ui/index.html
	indexHTML string

	//go:embed ui/usage.md
	usageMarkdown []byte
)

type viewerData struct {
	Usage      template.HTML
	AuthNeeded bool
	MinZoom    float64
	MaxZoom    float64
	Filename   string
}

// renderViewer builds the viewer page once at startup.
func renderViewer(cfg config.Config) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var usage bytes.Buffer
	if err := md.Convert(usageMarkdown, &usage); err != nil {
		return nil, fmt.Errorf("render usage notes: %w", err)
	}

	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("parse viewer template: %w", err)
	}
	var out bytes.Buffer
	err = tmpl.Execute(&out, viewerData{
		Usage:      template.HTML(usage.String()),
		AuthNeeded: cfg.APIKey != "",
		MinZoom:    cfg.MinZoom,
		MaxZoom:    cfg.MaxZoom,
		Filename:   cfg.ExportFilename,
	})
	if err != nil {
		return nil, fmt.Errorf("render viewer: %w", err)
	}
	return out.Bytes(), nil
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.ui)
}
