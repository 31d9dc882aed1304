package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/sitecraft/internal/identity"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/session"
	"github.com/ashureev/sitecraft/internal/store"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// Message types sent to and received from the browser.
const (
	TypeSnapshot = "snapshot"
	TypeChange   = "change"
	TypePing     = "ping"
	TypePong     = "pong"
)

// Message is one frame of the state feed.
type Message struct {
	Type   string        `json:"type"`
	Seq    uint64        `json:"seq,omitempty"`
	Fields []store.Field `json:"fields,omitempty"`
	State  *store.State  `json:"state,omitempty"`
}

// Workspaces resolves the workspace of a tab.
type Workspaces interface {
	Get(userID, sessionID string) (*session.Workspace, bool)
	Touch(userID, sessionID string)
}

// WebSocketHandler serves the per-tab state feed.
type WebSocketHandler struct {
	workspaces     Workspaces
	conns          *ConnManager
	metrics        *metrics.Metrics
	allowedOrigins []string
	isDev          bool
	queueSize      int
}

// NewWebSocketHandler creates a feed handler.
func NewWebSocketHandler(workspaces Workspaces, conns *ConnManager, m *metrics.Metrics, allowedOrigins []string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		workspaces:     workspaces,
		conns:          conns,
		metrics:        m,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		queueSize:      DefaultQueueSize,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The first frame
// is a snapshot; every later store change follows as a change frame.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Debug("State feed request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)
	h.metrics.AddLiveConnections(1)
	defer h.metrics.AddLiveConnections(-1)

	workspace, _ := h.workspaces.Get(userID, sessionID)

	queue := newChangeQueue(h.queueSize)
	unsubscribe := workspace.Store.Subscribe(queue.push)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	seq := workspace.Store.Seq()
	snap := workspace.Store.Snapshot()
	if err := writeJSON(ctx, ws, Message{Type: TypeSnapshot, Seq: seq, State: &snap}); err != nil {
		slog.Debug("Failed to send snapshot", "error", err, "user_id", userID)
		return
	}

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, userID, sessionID)
	}()

	h.writeLoop(ctx, ws, queue, seq)
	if n := queue.dropped.Load(); n > 0 {
		slog.Debug("State feed dropped stale changes", "user_id", userID, "session_id", sessionID, "dropped", n)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// readLoop answers pings and keeps the workspace alive while the tab is open.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("State feed closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		h.workspaces.Touch(userID, sessionID)

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == TypePing {
			if err := writeJSON(ctx, ws, Message{Type: TypePong}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

// writeLoop forwards queued changes. Changes published concurrently can be
// queued out of order; anything not newer than what was sent is skipped.
func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, queue *changeQueue, sent uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-queue.ch:
			if c.Seq <= sent {
				continue
			}
			state := c.State
			if err := writeJSON(ctx, ws, Message{Type: TypeChange, Seq: c.Seq, Fields: c.Fields, State: &state}); err != nil {
				slog.Debug("Failed to send change", "error", err)
				return
			}
			sent = c.Seq
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
