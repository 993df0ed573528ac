package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// IndexData is rendered into the landing page.
type IndexData struct {
	DefaultModel  string
	DefaultTitle  string
	MaxUploadMB   int
	HasDefaultKey bool
}

// IndexHandler serves the single-page PRD form.
type IndexHandler struct {
	data   IndexData
	logger *slog.Logger
}

// NewIndexHandler creates a new IndexHandler
func NewIndexHandler(data IndexData, logger *slog.Logger) *IndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexHandler{data: data, logger: logger}
}

// ServeHTTP handles GET / requests
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, h.data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render index", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
