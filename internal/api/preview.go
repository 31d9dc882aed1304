package api

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/ashureev/sitecraft/internal/preview"
	"github.com/go-chi/chi/v5"
)

// PreviewHandler serves the active artifact.
type PreviewHandler struct {
	*Handler
}

// NewPreviewHandler creates the handler.
func NewPreviewHandler(base *Handler) *PreviewHandler {
	return &PreviewHandler{Handler: base}
}

// RegisterRoutes registers preview routes.
func (h *PreviewHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/preview", h.View)
	r.Get("/preview/document", h.Document)
	r.Get("/preview/archive", h.Archive)
}

// View returns the preview panel model.
func (h *PreviewHandler) View(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	v, err := preview.NewView(ws.Store.Snapshot().GeneratedWebsite)
	if err != nil {
		h.logger.Error("Failed to render preview", "error", err)
		Error(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	JSON(w, http.StatusOK, v)
}

// Document serves the standalone document for a new tab. The CSP sandbox
// keeps artifact script out of this server's origin.
func (h *PreviewHandler) Document(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	website := ws.Store.Snapshot().GeneratedWebsite
	if website == nil {
		http.Error(w, preview.PlaceholderMessage, http.StatusNotFound)
		return
	}
	doc, err := preview.Document(website)
	if err != nil {
		h.logger.Error("Failed to compose document", "error", err)
		http.Error(w, "failed to compose document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", preview.DocumentCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(doc))
}

// Archive downloads the artifact as a ZIP.
func (h *PreviewHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	website := ws.Store.Snapshot().GeneratedWebsite
	data, err := preview.Archive(website)
	if err != nil {
		h.logger.Warn("Failed to package website", "error", err)
		status := http.StatusInternalServerError
		if website == nil {
			status = http.StatusNotFound
		}
		JSON(w, status, map[string]string{"alert": preview.MsgDownloadFailed})
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": preview.ArchiveName(website),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
