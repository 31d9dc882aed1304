// Package session keeps one workspace per browser tab: a Store with the
// form and history components bound to it.
package session

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/sitecraft/internal/form"
	"github.com/ashureev/sitecraft/internal/history"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/store"
)

// Client is the gateway surface a workspace needs.
type Client interface {
	form.Generator
	history.ProjectClient
}

// Workspace is the state of one tab.
type Workspace struct {
	UserID    string
	SessionID string

	Store   *store.Store
	Form    *form.Controller
	History *history.Browser

	lastSeen atomic.Int64
}

// Key identifies the workspace in the registry.
func (w *Workspace) Key() string { return Key(w.UserID, w.SessionID) }

// LastSeen is when the workspace was last used.
func (w *Workspace) LastSeen() time.Time { return time.Unix(0, w.lastSeen.Load()) }

func (w *Workspace) touch(now time.Time) { w.lastSeen.Store(now.UnixNano()) }

// Key joins a device id and a tab session id.
func Key(userID, sessionID string) string { return userID + "/" + sessionID }

// Registry owns the workspaces of every connected tab.
type Registry struct {
	client      Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
	formOpts    []form.Option
	historyOpts []history.Option
	now         func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics tracks the workspace count.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithFormOptions are applied to every new form controller.
func WithFormOptions(opts ...form.Option) Option {
	return func(r *Registry) { r.formOpts = append(r.formOpts, opts...) }
}

// WithHistoryOptions are applied to every new history browser.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(r *Registry) { r.historyOpts = append(r.historyOpts, opts...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(client Client, opts ...Option) *Registry {
	r := &Registry{
		client:     client,
		logger:     slog.Default(),
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the workspace for a tab, creating it on first use. created is
// true when the workspace is new, so the caller can run mount-time work.
func (r *Registry) Get(userID, sessionID string) (ws *Workspace, created bool) {
	key := Key(userID, sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[key]; ok {
		ws.touch(r.now())
		return ws, false
	}

	st := store.New()
	ws = &Workspace{
		UserID:    userID,
		SessionID: sessionID,
		Store:     st,
		Form:      form.NewController(st, r.client, r.formOpts...),
		History:   history.NewBrowser(st, r.client, r.historyOpts...),
	}
	ws.touch(r.now())
	r.workspaces[key] = ws
	r.metrics.AddWorkspaces(1)
	r.logger.Debug("Workspace created", "user_id", userID, "session_id", sessionID)
	return ws, true
}

// Lookup returns an existing workspace without creating or touching it.
func (r *Registry) Lookup(userID, sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[Key(userID, sessionID)]
	return ws, ok
}

// Touch marks a workspace as in use.
func (r *Registry) Touch(userID, sessionID string) {
	if ws, ok := r.Lookup(userID, sessionID); ok {
		ws.touch(r.now())
	}
}

// Len is the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Sweep removes workspaces idle for longer than ttl and returns them,
// oldest first. A workspace with a generation in flight is kept.
func (r *Registry) Sweep(ttl time.Duration) []*Workspace {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []*Workspace
	for key, ws := range r.workspaces {
		if !ws.LastSeen().Before(cutoff) || ws.Store.Snapshot().IsLoading {
			continue
		}
		delete(r.workspaces, key)
		expired = append(expired, ws)
	}
	r.mu.Unlock()

	r.metrics.AddWorkspaces(-float64(len(expired)))
	sort.Slice(expired, func(i, j int) bool { return expired[i].LastSeen().Before(expired[j].LastSeen()) })
	return expired
}
