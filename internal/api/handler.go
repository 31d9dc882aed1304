// Package api provides HTTP handlers for the sitecraft UI server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/sitecraft/internal/alert"
	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/ashureev/sitecraft/internal/identity"
	"github.com/ashureev/sitecraft/internal/session"
)

// MsgRequestFailed is the alert used when a failure carries no message.
const MsgRequestFailed = "Request failed. Please try again."

// Workspaces resolves the workspace of the calling tab.
type Workspaces interface {
	Get(userID, sessionID string) (*session.Workspace, bool)
}

// Handler provides common handler utilities.
type Handler struct {
	workspaces Workspaces
	logger     *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(workspaces Workspaces, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{workspaces: workspaces, logger: logger}
}

// workspace returns the calling tab's workspace, creating it on first use.
func (h *Handler) workspace(r *http.Request) *session.Workspace {
	ws, created := h.workspaces.Get(identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()))
	if created {
		h.logger.Info("Workspace opened", "user_id", ws.UserID, "session_id", ws.SessionID)
	}
	return ws
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Alert writes a failure the browser must show as a blocking alert. A
// missing project maps to 404, anything else to 502.
func Alert(w http.ResponseWriter, err error) {
	msg, ok := alert.MessageOf(err)
	if !ok {
		msg = MsgRequestFailed
	}
	status := http.StatusBadGateway
	if apiclient.IsNotFound(err) {
		status = http.StatusNotFound
	}
	JSON(w, status, map[string]string{"alert": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
