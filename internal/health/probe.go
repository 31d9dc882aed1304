// Package health tracks whether the generation backend is reachable.
package health

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/ashureev/sitecraft/internal/metrics"
)

// Status is the probe's view of the backend.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultReason is reported when the backend cannot be reached or a failed
// check carries no message of its own.
const DefaultReason = "Cannot connect to API server"

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// Checker performs one health check. A nil error means healthy.
type Checker interface {
	Probe(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Probe calls f.
func (f CheckerFunc) Probe(ctx context.Context) error { return f(ctx) }

// State is the result of the last check.
type State struct {
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Probe holds the health state. It never touches the client Store and a
// failed check never blocks anything else.
type Probe struct {
	checker Checker
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State
}

// Option configures a Probe.
type Option func(*Probe)

// WithTimeout bounds each check; zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Probe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the probe logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Probe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics counts check results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Probe) { p.metrics = m }
}

// NewProbe creates a probe in the unknown state.
func NewProbe(checker Checker, opts ...Option) *Probe {
	p := &Probe{
		checker: checker,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		state:   State{Status: StatusUnknown},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the last result.
func (p *Probe) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Check runs the checker once and records the outcome. It never fails; any
// error becomes the unhealthy state.
func (p *Probe) Check(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	next := State{Status: StatusHealthy, CheckedAt: time.Now()}
	if err := p.probe(ctx); err != nil {
		next.Status = StatusUnhealthy
		next.Reason = reason(err)
		next.Detail = err.Error()
		p.logger.Warn("Backend health check failed", "error", err)
	}
	p.metrics.ObserveHealth(string(next.Status))

	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
	return next
}

// reason is the user-facing text for a failed check.
func reason(err error) string {
	var te *apiclient.TransportError
	if errors.As(err, &te) {
		return DefaultReason
	}
	if msg := strings.TrimSpace(apiclient.Message(err)); msg != "" {
		return msg
	}
	return DefaultReason
}

func (p *Probe) probe(ctx context.Context) (err error) {
	if p.checker == nil {
		return errNoChecker
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return p.checker.Probe(ctx)
}
