// Package store provides the observable client state container shared by
// the form, preview and history components of one workspace.
package store

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ashureev/sitecraft/internal/domain"
)

// Field names a piece of state that a change notification can cover.
type Field string

const (
	FieldUserPrompt       Field = "user_prompt"
	FieldWebsiteType      Field = "website_type"
	FieldTitle            Field = "title"
	FieldIsLoading        Field = "is_loading"
	FieldError            Field = "error"
	FieldGeneratedWebsite Field = "generated_website"
	FieldProjects         Field = "projects"
	FieldCurrentProject   Field = "current_project"
)

// State is a snapshot of the store. Error is empty when there is no error.
type State struct {
	UserPrompt       string                   `json:"user_prompt"`
	WebsiteType      domain.WebsiteType       `json:"website_type"`
	Title            string                   `json:"title"`
	IsLoading        bool                     `json:"is_loading"`
	Error            string                   `json:"error,omitempty"`
	GeneratedWebsite *domain.GeneratedWebsite `json:"generated_website"`
	Projects         []domain.Project         `json:"projects"`
	CurrentProject   *domain.Project          `json:"current_project"`
}

func initialState() State {
	return State{
		WebsiteType: domain.DefaultWebsiteType,
		Projects:    []domain.Project{},
	}
}

// clone copies the parts of s that could otherwise be aliased.
func (s State) clone() State {
	s.Projects = slices.Clone(s.Projects)
	if s.Projects == nil {
		s.Projects = []domain.Project{}
	}
	if s.GeneratedWebsite != nil {
		w := *s.GeneratedWebsite
		s.GeneratedWebsite = &w
	}
	if s.CurrentProject != nil {
		p := *s.CurrentProject
		s.CurrentProject = &p
	}
	return s
}

// Change is published after every mutation.
type Change struct {
	Seq    uint64  `json:"seq"`
	Fields []Field `json:"fields"`
	State  State   `json:"state"`
}

// Touches reports whether the change covers f.
func (c Change) Touches(f Field) bool {
	return slices.Contains(c.Fields, f)
}

// Listener receives change notifications. It runs on the mutating goroutine
// after the store lock is released, so it may read or mutate the store.
type Listener func(Change)

type subscription struct {
	id       uint64
	fields   []Field
	listener Listener
}

func (s *subscription) wants(fields []Field) bool {
	if len(s.fields) == 0 {
		return true
	}
	for _, f := range fields {
		if slices.Contains(s.fields, f) {
			return true
		}
	}
	return false
}

// Store is the state container. Construct one per workspace with New.
type Store struct {
	mu    sync.RWMutex
	state State
	seq   uint64

	subMu  sync.RWMutex
	subs   []*subscription
	nextID uint64

	logger *slog.Logger
}

// New creates a store holding the initial state.
func New() *Store {
	return &Store{state: initialState(), logger: slog.Default()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Seq returns the sequence number of the last published change.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Subscribe registers l for changes touching any of fields, or every change
// when no fields are given. The returned func removes the subscription.
func (s *Store) Subscribe(l Listener, fields ...Field) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	sub := &subscription{id: s.nextID, fields: slices.Clone(fields), listener: l}
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(x *subscription) bool { return x.id == sub.id })
		})
	}
}

// update applies fn under the lock and, when fn reports a change, publishes
// it to the subscribers of the touched fields.
func (s *Store) update(fn func(st *State) bool, fields ...Field) bool {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	s.seq++
	change := Change{Seq: s.seq, Fields: fields, State: s.state.clone()}
	s.mu.Unlock()

	s.publish(change)
	return true
}

func (s *Store) set(fn func(st *State), fields ...Field) {
	s.update(func(st *State) bool {
		fn(st)
		return true
	}, fields...)
}

func (s *Store) publish(change Change) {
	s.subMu.RLock()
	subs := slices.Clone(s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		if sub.wants(change.Fields) {
			s.notify(sub, change)
		}
	}
}

func (s *Store) notify(sub *subscription, change Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Store listener panicked", "subscription", sub.id, "seq", change.Seq, "panic", r)
		}
	}()
	sub.listener(change)
}

// SetUserPrompt replaces the prompt text.
func (s *Store) SetUserPrompt(prompt string) {
	s.set(func(st *State) { st.UserPrompt = prompt }, FieldUserPrompt)
}

// SetWebsiteType replaces the selected website type.
func (s *Store) SetWebsiteType(t domain.WebsiteType) {
	s.set(func(st *State) { st.WebsiteType = t }, FieldWebsiteType)
}

// SetTitle replaces the optional title.
func (s *Store) SetTitle(title string) {
	s.set(func(st *State) { st.Title = title }, FieldTitle)
}

// SetIsLoading sets the generation-in-flight flag.
func (s *Store) SetIsLoading(loading bool) {
	s.set(func(st *State) { st.IsLoading = loading }, FieldIsLoading)
}

// BeginLoading sets the loading flag only if no generation is in flight.
// It returns false when one already is.
func (s *Store) BeginLoading() bool {
	return s.update(func(st *State) bool {
		if st.IsLoading {
			return false
		}
		st.IsLoading = true
		return true
	}, FieldIsLoading)
}

// SetError sets the inline error message. An empty message clears it.
func (s *Store) SetError(msg string) {
	s.set(func(st *State) { st.Error = msg }, FieldError)
}

// ClearError removes the inline error message.
func (s *Store) ClearError() {
	s.SetError("")
}

// SetGeneratedWebsite replaces the active artifact; nil clears it.
func (s *Store) SetGeneratedWebsite(w *domain.GeneratedWebsite) {
	if w != nil {
		cp := *w
		w = &cp
	}
	s.set(func(st *State) { st.GeneratedWebsite = w }, FieldGeneratedWebsite)
}

// SetProjects replaces the cached project list wholesale.
func (s *Store) SetProjects(projects []domain.Project) {
	projects = slices.Clone(projects)
	if projects == nil {
		projects = []domain.Project{}
	}
	s.set(func(st *State) { st.Projects = projects }, FieldProjects)
}

// AppendProjects adds a page of projects to the end of the cached list,
// skipping ids that are already present.
func (s *Store) AppendProjects(projects []domain.Project) {
	s.set(func(st *State) {
		out := slices.Clone(st.Projects)
		for _, p := range projects {
			if !slices.ContainsFunc(out, func(x domain.Project) bool { return x.ID == p.ID }) {
				out = append(out, p)
			}
		}
		st.Projects = out
	}, FieldProjects)
}

// RemoveProject removes the project with id from the cached list. It
// returns the removed entry and its index so the removal can be undone.
func (s *Store) RemoveProject(id domain.ID) (removed domain.Project, index int, ok bool) {
	s.update(func(st *State) bool {
		index = slices.IndexFunc(st.Projects, func(p domain.Project) bool { return p.ID == id })
		if index < 0 {
			return false
		}
		removed = st.Projects[index]
		st.Projects = slices.Delete(slices.Clone(st.Projects), index, index+1)
		ok = true
		return true
	}, FieldProjects)
	return removed, index, ok
}

// RestoreProject puts p back at index (clamped to the list bounds) unless
// an entry with the same id is already present.
func (s *Store) RestoreProject(p domain.Project, index int) {
	s.update(func(st *State) bool {
		if slices.ContainsFunc(st.Projects, func(x domain.Project) bool { return x.ID == p.ID }) {
			return false
		}
		index = max(0, min(index, len(st.Projects)))
		st.Projects = slices.Insert(slices.Clone(st.Projects), index, p)
		return true
	}, FieldProjects)
}

// SetCurrentProject replaces the project pointer; nil clears it.
func (s *Store) SetCurrentProject(p *domain.Project) {
	if p != nil {
		cp := *p
		p = &cp
	}
	s.set(func(st *State) { st.CurrentProject = p }, FieldCurrentProject)
}

// ResetForm restores prompt, title, type and error to their defaults. It
// leaves loading, artifact and project state alone.
func (s *Store) ResetForm() {
	s.set(func(st *State) {
		st.UserPrompt = ""
		st.Title = ""
		st.WebsiteType = domain.DefaultWebsiteType
		st.Error = ""
	}, FieldUserPrompt, FieldTitle, FieldWebsiteType, FieldError)
}
