package api

import (
	"context"
	"net/http"

	"github.com/ashureev/sitecraft/internal/health"
	"github.com/go-chi/chi/v5"
)

// Prober is the health probe surface the handler needs.
type Prober interface {
	State() health.State
	Check(ctx context.Context) health.State
}

// HealthHandler reports backend reachability. It is independent of any
// workspace.
type HealthHandler struct {
	probe Prober
}

// NewHealthHandler creates the handler.
func NewHealthHandler(probe Prober) *HealthHandler {
	return &HealthHandler{probe: probe}
}

// RegisterRoutes registers health routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Get)
	r.Post("/api/health/retry", h.Retry)
}

// Get returns the last probe result.
func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.probe.State())
}

// Retry runs the probe again.
func (h *HealthHandler) Retry(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.probe.Check(r.Context()))
}
