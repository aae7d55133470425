// Package mockstore is an in-process stand-in for the remote services a deal prep
// run talks to: the artifact bucket, the CRM notes API and the Motion tasks API.
package mockstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/remote"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Note is a CRM note received on POST /v1/notes.
type Note struct {
	ID           string `json:"id"`
	Target       string `json:"target"`
	Title        string `json:"title"`
	BodyMarkdown string `json:"body_markdown"`
	RunID        string `json:"run_id"`
}

// Task is a Motion task received on POST /v1/tasks.
type Task struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	WorkspaceID string   `json:"workspaceId"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

// Server serves the mock APIs.
type Server struct {
	store artifact.Store

	mu    sync.Mutex
	calls []Call
	notes []Note
	tasks []Task

	expectedAuthorization string
	expectedAPIKey        string

	failStatus    int
	failRemaining int
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock of the default in-memory bucket.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.store = artifact.NewMemoryStore(artifact.WithMemoryClock(now))
	}
}

// WithStore backs the bucket with an existing store.
func WithStore(store artifact.Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// New constructs a new mock server backed by an in-memory bucket.
func New(opts ...Option) *Server {
	s := &Server{store: artifact.NewMemoryStore()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequireBearerToken enforces that bucket and CRM requests include an Authorization
// header matching the token. If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// RequireAPIKey enforces the X-API-Key header on Motion requests.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedAPIKey = strings.TrimSpace(key)
}

// FailNext makes the next n requests answer with status.
func (s *Server) FailNext(n int, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemaining = n
	s.failStatus = status
}

// Handler returns an http.Handler that serves the mock APIs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/runs/", s.handleRuns)
	mux.HandleFunc("/v1/notes", s.handleNotes)
	mux.HandleFunc("/v1/tasks", s.handleTasks)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Notes returns a snapshot of received CRM notes.
func (s *Server) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Tasks returns a snapshot of received Motion tasks.
func (s *Server) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// recordCall logs the request and reports whether an injected failure was served.
func (s *Server) recordCall(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	fail := 0
	if s.failRemaining > 0 {
		s.failRemaining--
		fail = s.failStatus
	}
	s.mu.Unlock()

	if fail != 0 {
		writeError(w, fail, "INJECTED", "injected failure")
		return true
	}
	return false
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.expectedAuthorization
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return false
	}
	return true
}

func (s *Server) authorizeAPIKey(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.expectedAPIKey
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.Header.Get("X-API-Key") != expected {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return false
	}
	return true
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.recordCall(w, r) || !s.authorize(w, r) {
		return
	}

	// /v1/runs/{run}/artifacts
	// /v1/runs/{run}/artifacts/{file}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[1] != "artifacts" {
		http.NotFound(w, r)
		return
	}
	runID := parts[0]
	if err := artifact.CheckRunID(runID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RUN_ID", err.Error())
		return
	}

	if len(parts) == 2 || (len(parts) == 3 && parts[2] == "") {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.store.Delete(r.Context(), runID, nil); err != nil {
			writeError(w, http.StatusInternalServerError, "STORE", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}
	t, ok := artifact.TypeFromFileName(parts[2])
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ARTIFACT", fmt.Sprintf("unknown artifact %q", parts[2]))
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handlePut(w, r, runID, t)
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r, runID, t)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), runID, &t); err != nil {
			writeError(w, http.StatusInternalServerError, "STORE", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, runID string, t artifact.Type) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	info, err := s.store.Save(r.Context(), runID, t, b, remote.MetaFromHeader(r.Header))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, runID string, t artifact.Type) {
	got, err := s.store.Load(r.Context(), runID, t)
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "artifact not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE", err.Error())
		return
	}
	h := w.Header()
	h.Set("Content-Type", got.Info.ContentType)
	h.Set(remote.HeaderChecksum, got.Info.Checksum)
	h.Set(remote.HeaderCreatedAt, got.Info.CreatedAt.UTC().Format(time.RFC3339Nano))
	remote.MetaHeader(h, got.Metadata)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(got.Content)
	}
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if s.recordCall(w, r) || !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var n Note
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	if strings.TrimSpace(n.Target) == "" || strings.TrimSpace(n.BodyMarkdown) == "" {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_NOTE", "target and body_markdown are required")
		return
	}

	s.mu.Lock()
	n.ID = fmt.Sprintf("note-%06d", len(s.notes)+1)
	s.notes = append(s.notes, n)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"id": n.ID})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.recordCall(w, r) || !s.authorizeAPIKey(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var task Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	if strings.TrimSpace(task.Name) == "" || strings.TrimSpace(task.WorkspaceID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_TASK", "name and workspaceId are required")
		return
	}
	if _, err := time.Parse(time.RFC3339, task.DueDate); task.DueDate != "" && err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_TASK", "dueDate must be RFC 3339")
		return
	}

	s.mu.Lock()
	task.ID = fmt.Sprintf("task-%06d", len(s.tasks)+1)
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"id": task.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}
