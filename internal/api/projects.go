package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/history"
	"github.com/go-chi/chi/v5"
)

// ProjectsHandler serves the project history of a tab.
type ProjectsHandler struct {
	*Handler
}

// NewProjectsHandler creates the handler.
func NewProjectsHandler(base *Handler) *ProjectsHandler {
	return &ProjectsHandler{Handler: base}
}

// RegisterRoutes registers history routes.
func (h *ProjectsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/projects", h.List)
	r.Post("/api/projects/refresh", h.Refresh)
	r.Post("/api/projects/more", h.LoadMore)
	r.Post("/api/projects/{id}/view", h.View)
	r.Delete("/api/projects/{id}", h.Delete)
}

// List returns the cached list without contacting the backend.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	JSON(w, http.StatusOK, map[string]any{
		"projects": ws.Store.Snapshot().Projects,
		"loading":  ws.History.Loading(),
	})
}

// Refresh reloads the first page.
func (h *ProjectsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	if err := ws.History.Refresh(r.Context()); err != nil {
		Alert(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"projects": ws.Store.Snapshot().Projects})
}

// LoadMore appends the next page.
func (h *ProjectsHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	n, err := ws.History.LoadMore(r.Context())
	if err != nil {
		Alert(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"projects": ws.Store.Snapshot().Projects,
		"added":    n,
		"has_more": n >= ws.History.PageSize(),
	})
}

// View opens a project in the preview.
func (h *ProjectsHandler) View(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	project, err := ws.History.View(r.Context(), domain.ID(chi.URLParam(r, "id")))
	if err != nil {
		Alert(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"project": project})
}

// Delete removes a project. The browser confirms first and says so with
// ?confirm=true; without it nothing happens.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirmed {
		JSON(w, http.StatusPreconditionRequired, map[string]string{
			"error":  "confirmation required",
			"prompt": history.ConfirmDeletePrompt,
		})
		return
	}

	ws := h.workspace(r)
	id := domain.ID(chi.URLParam(r, "id"))
	deleted, err := ws.History.Delete(r.Context(), id, history.Confirmed)
	if err != nil {
		Alert(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"deleted": deleted, "id": id})
}
