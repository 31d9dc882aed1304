// Package apitest provides an in-memory implementation of the generation
// backend's HTTP contract for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Failure is a canned error answer.
type Failure struct {
	Status int
	Body   string
}

// Server is a fake backend. Projects are kept newest first.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	projects map[domain.ID]domain.Project
	healthy  string

	generateFailure *Failure
	listFailure     *Failure
	getFailure      *Failure
	deleteFailure   *Failure

	// block, when set, holds generate calls until it is closed.
	block chan struct{}

	GenerateCalls atomic.Int32
	ListCalls     atomic.Int32
	GetCalls      atomic.Int32
	DeleteCalls   atomic.Int32

	LastGenerate atomic.Pointer[domain.GenerationRequest]
	LastQuery    atomic.Pointer[string]
}

// NewServer starts a fake backend. The caller must Close it.
func NewServer() *Server {
	s := &Server{
		projects: make(map[domain.ID]domain.Project),
		healthy:  "healthy",
	}

	r := chi.NewRouter()
	r.Post("/api/generate-website", s.generate)
	r.Get("/api/projects", s.list)
	r.Get("/api/projects/{id}", s.get)
	r.Delete("/api/projects/{id}", s.delete)
	r.Get("/api/health", s.health)

	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL is the API root to hand to apiclient.New.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// AddProject stores a project and returns it with id and timestamps filled.
func (s *Server) AddProject(p domain.Project) domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(p)
}

func (s *Server) addLocked(p domain.Project) domain.Project {
	s.nextID++
	if p.ID == "" {
		p.ID = domain.ID(strconv.Itoa(s.nextID))
	}
	if p.CreatedAt == "" {
		ts := domain.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Second))
		p.CreatedAt = ts
		p.UpdatedAt = ts
	}
	s.projects[p.ID] = p
	return p
}

// Projects returns the stored projects, newest first.
func (s *Server) Projects() []domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Server) sortedLocked() []domain.Project {
	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// SetHealthStatus changes the status string reported by /health.
func (s *Server) SetHealthStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = status
}

// FailGenerate makes generate calls answer with f; nil clears it.
func (s *Server) FailGenerate(f *Failure) { s.setFailure(&s.generateFailure, f) }

// FailList makes list calls answer with f; nil clears it.
func (s *Server) FailList(f *Failure) { s.setFailure(&s.listFailure, f) }

// FailGet makes get calls answer with f; nil clears it.
func (s *Server) FailGet(f *Failure) { s.setFailure(&s.getFailure, f) }

// FailDelete makes delete calls answer with f; nil clears it.
func (s *Server) FailDelete(f *Failure) { s.setFailure(&s.deleteFailure, f) }

func (s *Server) setFailure(slot **Failure, f *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*slot = f
}

// BlockGenerate holds generate calls until the returned func is called.
func (s *Server) BlockGenerate() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *Server) failure(slot **Failure) *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *slot
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	s.GenerateCalls.Add(1)

	s.mu.Lock()
	block := s.block
	fail := s.generateFailure
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail != nil {
		writeFailure(w, fail)
		return
	}

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid JSON body"}},
		})
		return
	}
	s.LastGenerate.Store(&req)

	if n := len([]rune(req.UserPrompt)); n < 10 || n > 2000 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{
				"loc":  []string{"body", "user_prompt"},
				"msg":  "String should have at least 10 characters",
				"type": "string_too_short",
			}},
		})
		return
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("%s - AI Generated", req.WebsiteType)
	}

	s.mu.Lock()
	p := s.addLocked(domain.Project{
		Title:       title,
		WebsiteType: req.WebsiteType,
		UserPrompt:  req.UserPrompt,
		HTML:        "<main><h1>" + title + "</h1></main>",
		CSS:         "main { padding: 2rem; }",
		JavaScript:  "console.log('ready');",
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, p.Website())
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.ListCalls.Add(1)
	q := r.URL.RawQuery
	s.LastQuery.Store(&q)
	if fail := s.failure(&s.listFailure); fail != nil {
		writeFailure(w, fail)
		return
	}

	skip, err := strconv.Atoi(r.URL.Query().Get("skip"))
	if err != nil || skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	typ := domain.WebsiteType(r.URL.Query().Get("website_type"))

	s.mu.Lock()
	all := s.sortedLocked()
	s.mu.Unlock()

	filtered := make([]domain.Project, 0, len(all))
	for _, p := range all {
		if typ == "" || p.WebsiteType == typ {
			filtered = append(filtered, p)
		}
	}
	if skip > len(filtered) {
		skip = len(filtered)
	}
	end := skip + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	writeJSON(w, http.StatusOK, filtered[skip:end])
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.GetCalls.Add(1)
	if fail := s.failure(&s.getFailure); fail != nil {
		writeFailure(w, fail)
		return
	}
	id := domain.ID(chi.URLParam(r, "id"))

	s.mu.Lock()
	p, ok := s.projects[id]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("Project %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.DeleteCalls.Add(1)
	if fail := s.failure(&s.deleteFailure); fail != nil {
		writeFailure(w, fail)
		return
	}
	id := domain.ID(chi.URLParam(r, "id"))

	s.mu.Lock()
	_, ok := s.projects[id]
	delete(s.projects, id)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("Project %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Project %s deleted successfully", id)})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := s.healthy
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": "fake backend"})
}

func writeFailure(w http.ResponseWriter, f *Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_, _ = w.Write([]byte(f.Body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
