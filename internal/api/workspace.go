package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/form"
	"github.com/go-chi/chi/v5"
)

// WorkspaceHandler serves the tab state and the generation form.
type WorkspaceHandler struct {
	*Handler
	generateLimit func(http.Handler) http.Handler
}

// NewWorkspaceHandler creates the handler. generateLimit wraps the generate
// route only and sees only valid prompts; nil leaves it unlimited.
func NewWorkspaceHandler(base *Handler, generateLimit func(http.Handler) http.Handler) *WorkspaceHandler {
	return &WorkspaceHandler{Handler: base, generateLimit: generateLimit}
}

// RegisterRoutes registers state and form routes.
func (h *WorkspaceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/state", h.GetState)
	r.Put("/api/form", h.UpdateForm)
	r.Post("/api/form/reset", h.ResetForm)

	r.Post("/api/generate", h.generateRoute())
}

// generateRoute charges the limiter only for prompts that pass validation,
// so a user fixing a short prompt is never throttled.
func (h *WorkspaceHandler) generateRoute() http.HandlerFunc {
	if h.generateLimit == nil {
		return h.Generate
	}
	limited := h.generateLimit(http.HandlerFunc(h.Generate))
	return func(w http.ResponseWriter, r *http.Request) {
		if form.Validate(h.workspace(r).Store.Snapshot().UserPrompt) != nil {
			h.Generate(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	}
}

// GetState returns the tab's store snapshot.
func (h *WorkspaceHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	JSON(w, http.StatusOK, ws.Store.Snapshot())
}

type formUpdate struct {
	UserPrompt  *string `json:"user_prompt"`
	WebsiteType *string `json:"website_type"`
	Title       *string `json:"title"`
}

// UpdateForm applies a partial form update. Only fields present in the body
// change.
func (h *WorkspaceHandler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var req formUpdate
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var websiteType domain.WebsiteType
	if req.WebsiteType != nil {
		t, err := domain.ParseWebsiteType(*req.WebsiteType)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		websiteType = t
	}

	ws := h.workspace(r)
	if ws.Store.Snapshot().IsLoading {
		Error(w, http.StatusConflict, form.ErrInFlight.Error())
		return
	}
	if req.UserPrompt != nil {
		ws.Store.SetUserPrompt(*req.UserPrompt)
	}
	if req.WebsiteType != nil {
		ws.Store.SetWebsiteType(websiteType)
	}
	if req.Title != nil {
		ws.Store.SetTitle(*req.Title)
	}
	JSON(w, http.StatusOK, ws.Store.Snapshot())
}

// ResetForm restores the form defaults.
func (h *WorkspaceHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Store.ResetForm()
	JSON(w, http.StatusOK, ws.Store.Snapshot())
}

// Generate submits the tab's form. The generation outlives the request so
// a closed browser connection cannot leave the workspace loading.
func (h *WorkspaceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)

	website, err := ws.Form.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		var verr *form.ValidationError
		switch {
		case errors.As(err, &verr):
			Error(w, http.StatusUnprocessableEntity, verr.Message)
		case errors.Is(err, form.ErrInFlight):
			Error(w, http.StatusConflict, err.Error())
		default:
			Error(w, http.StatusBadGateway, ws.Store.Snapshot().Error)
			h.logger.Debug("Generation failed", "user_id", ws.UserID, "session_id", ws.SessionID,
				"backend_detail", apiclient.Message(err))
		}
		return
	}
	JSON(w, http.StatusOK, map[string]any{"website": website})
}
