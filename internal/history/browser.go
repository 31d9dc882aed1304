// Package history lists, opens and deletes previously generated projects.
package history

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ashureev/sitecraft/internal/alert"
	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/store"
)

// DefaultPageSize is how many projects one fetch asks for.
const DefaultPageSize = 20

// Alert messages.
const (
	MsgLoadProjectsFailed  = "Failed to load projects"
	MsgLoadProjectFailed   = "Failed to load project"
	MsgDeleteProjectFailed = "Failed to delete project"
)

// ConfirmDeletePrompt is the question asked before deleting.
const ConfirmDeletePrompt = "Are you sure you want to delete this project?"

// ProjectClient is the part of the gateway client the browser needs.
type ProjectClient interface {
	ListProjects(ctx context.Context, skip, limit int, websiteType domain.WebsiteType) ([]domain.Project, error)
	GetProject(ctx context.Context, id domain.ID) (*domain.Project, error)
	DeleteProject(ctx context.Context, id domain.ID) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer func(prompt string) bool

// Confirmed is a Confirmer that always agrees.
func Confirmed(string) bool { return true }

// Browser drives the project history of one store.
type Browser struct {
	store    *store.Store
	client   ProjectClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pageSize int

	loading atomic.Int32
}

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the browser logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records history operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Browser) { b.metrics = m }
}

// WithPageSize changes how many projects each fetch asks for.
func WithPageSize(n int) Option {
	return func(b *Browser) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// NewBrowser creates a history browser over st.
func NewBrowser(st *store.Store, client ProjectClient, opts ...Option) *Browser {
	b := &Browser{
		store:    st,
		client:   client,
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PageSize returns the fetch page size.
func (b *Browser) PageSize() int { return b.pageSize }

// Loading reports whether a list fetch is running.
func (b *Browser) Loading() bool { return b.loading.Load() > 0 }

// Load fetches the first page and replaces the cached list wholesale.
func (b *Browser) Load(ctx context.Context) error {
	b.loading.Add(1)
	defer b.loading.Add(-1)

	projects, err := b.client.ListProjects(ctx, 0, b.pageSize, "")
	b.metrics.ObserveProjectOp("list", err)
	if err != nil {
		b.logger.Error("Failed to load projects", "error", err)
		return alert.New(MsgLoadProjectsFailed, err)
	}
	b.store.SetProjects(projects)
	return nil
}

// Refresh re-runs Load on demand.
func (b *Browser) Refresh(ctx context.Context) error {
	return b.Load(ctx)
}

// LoadMore fetches the page after the cached list and appends it. It
// returns how many new projects arrived; fewer than the page size means the
// history is exhausted.
func (b *Browser) LoadMore(ctx context.Context) (int, error) {
	b.loading.Add(1)
	defer b.loading.Add(-1)

	before := len(b.store.Snapshot().Projects)
	projects, err := b.client.ListProjects(ctx, before, b.pageSize, "")
	b.metrics.ObserveProjectOp("list", err)
	if err != nil {
		b.logger.Error("Failed to load more projects", "skip", before, "error", err)
		return 0, alert.New(MsgLoadProjectsFailed, err)
	}
	b.store.AppendProjects(projects)
	return len(projects), nil
}

// Delete removes a project after confirmation. The entry is removed from
// the cached list right away and put back if the backend refuses. It
// reports whether a delete was attempted and succeeded.
func (b *Browser) Delete(ctx context.Context, id domain.ID, confirm Confirmer) (bool, error) {
	if confirm == nil || !confirm(ConfirmDeletePrompt) {
		return false, nil
	}

	removed, index, wasCached := b.store.RemoveProject(id)

	err := b.client.DeleteProject(ctx, id)
	b.metrics.ObserveProjectOp("delete", err)
	if err != nil {
		if wasCached {
			b.store.RestoreProject(removed, index)
		}
		b.logger.Error("Failed to delete project", "project_id", id, "error", err)
		return false, alert.New(MsgDeleteProjectFailed, err)
	}

	b.logger.Info("Project deleted", "project_id", id)
	return true, nil
}

// View fetches a project, makes it current and hands its bundle to the
// preview as the active artifact.
func (b *Browser) View(ctx context.Context, id domain.ID) (*domain.Project, error) {
	project, err := b.client.GetProject(ctx, id)
	b.metrics.ObserveProjectOp("view", err)
	if err != nil {
		b.logger.Error("Failed to load project", "project_id", id, "error", err)
		return nil, alert.New(MsgLoadProjectFailed, err)
	}

	b.store.SetCurrentProject(project)
	b.store.SetGeneratedWebsite(project.Website())
	return project, nil
}
