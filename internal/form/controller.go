// Package form validates the generation form and submits it to the backend.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/store"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 2000
)

// User-facing messages.
const (
	MsgEmptyPrompt    = "Please enter a description of your website"
	MsgPromptTooShort = "Description must be at least 10 characters"
	MsgPromptTooLong  = "Description must be at most 2000 characters"
	MsgGenerateFailed = "Failed to generate website. Please try again."
)

// ErrInFlight is returned when a submission arrives while another
// generation is still outstanding.
var ErrInFlight = errors.New("a website is already being generated")

// ValidationError is a client-side rejection. It never reaches the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks a prompt in order: empty, too short, too long.
func Validate(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return &ValidationError{Message: MsgEmptyPrompt}
	}
	n := utf8.RuneCountInString(trimmed)
	if n < MinPromptLength {
		return &ValidationError{Message: MsgPromptTooShort}
	}
	if n > MaxPromptLength {
		return &ValidationError{Message: MsgPromptTooLong}
	}
	return nil
}

// DefaultTitle is the title used when the form's title is left blank.
func DefaultTitle(t domain.WebsiteType) string {
	return fmt.Sprintf("My %s Website", t.Label())
}

// Generator is the part of the gateway client the form needs.
type Generator interface {
	GenerateWebsite(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedWebsite, error)
}

// Phase is a state of the submission state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// TransitionHook observes phase changes.
type TransitionHook func(from, to Phase)

// Controller drives one store's form through validation and submission.
type Controller struct {
	store   *store.Store
	gen     Generator
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	hook    TransitionHook

	phase atomic.Int32
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records generation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTimeout bounds each generation call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithTransitionHook observes every phase change.
func WithTransitionHook(h TransitionHook) Option {
	return func(c *Controller) { c.hook = h }
}

// NewController creates a form controller over st.
func NewController(st *store.Store, gen Generator, opts ...Option) *Controller {
	c := &Controller{
		store:  st,
		gen:    gen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Controller) transition(to Phase) {
	from := Phase(c.phase.Swap(int32(to)))
	if c.hook != nil && from != to {
		c.hook(from, to)
	}
}

// Submit validates the form held in the store and, if valid, generates a
// website. Validation failures return a *ValidationError, a concurrent
// submission returns ErrInFlight, and backend failures return the gateway
// error. In every case the store reflects the outcome.
func (c *Controller) Submit(ctx context.Context) (*domain.GeneratedWebsite, error) {
	snap := c.store.Snapshot()
	if snap.IsLoading {
		return nil, ErrInFlight
	}

	if err := Validate(snap.UserPrompt); err != nil {
		c.transition(PhaseValidating)
		c.store.SetError(err.Error())
		c.transition(PhaseIdle)
		return nil, err
	}

	// Losing the race for the loading flag leaves the phase to the winner.
	if !c.store.BeginLoading() {
		return nil, ErrInFlight
	}
	c.transition(PhaseValidating)
	c.transition(PhaseSubmitting)
	c.store.ClearError()

	title := snap.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(snap.WebsiteType)
	}
	req := domain.GenerationRequest{
		UserPrompt:  snap.UserPrompt,
		WebsiteType: snap.WebsiteType,
		Title:       title,
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	website, err := c.gen.GenerateWebsite(ctx, req)
	if err != nil {
		c.metrics.ObserveGeneration("failed", time.Since(start))
		msg := apiclient.Message(err)
		if msg == "" {
			msg = MsgGenerateFailed
		}
		c.logger.Warn("Website generation failed", "website_type", req.WebsiteType, "error", err)
		c.store.SetError(msg)
		c.store.SetIsLoading(false)
		c.transition(PhaseFailed)
		c.transition(PhaseIdle)
		return nil, err
	}

	c.metrics.ObserveGeneration("success", time.Since(start))
	c.logger.Info("Website generated", "id", website.ID, "website_type", website.WebsiteType, "duration", time.Since(start))
	c.store.SetGeneratedWebsite(website)
	c.store.SetIsLoading(false)
	c.transition(PhaseSuccess)
	c.transition(PhaseIdle)
	return website, nil
}
