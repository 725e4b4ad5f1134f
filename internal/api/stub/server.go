// Package stub provides an in-memory download server that speaks the job
// protocol. It replays scripted status replies and is used by tests.
package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/veranemoloko/clipfetch/internal/domain"
)

// Reply is one scripted answer to GET /status/{taskID}. When Raw is set it is
// written verbatim instead of Status.
type Reply struct {
	Code   int
	Status domain.JobStatus
	Raw    string
}

// Pending replies with a pending status at the given progress.
func Pending(progress float64) Reply {
	return Reply{Status: domain.JobStatus{Status: domain.JobPending, Progress: &progress}}
}

// Completed replies with a completed status pointing at fileURL.
func Completed(fileURL string) Reply {
	one := 1.0
	return Reply{Status: domain.JobStatus{Status: domain.JobCompleted, Progress: &one, FileURL: fileURL}}
}

// Failed replies with a failed status carrying msg.
func Failed(msg string) Reply {
	return Reply{Status: domain.JobStatus{Status: domain.JobFailed, Error: msg}}
}

// Raw replies with body as-is.
func Raw(body string) Reply {
	return Reply{Raw: body}
}

type job struct {
	request domain.JobRequest
	calls   int
}

// Server is a scripted job server.
type Server struct {
	mu        sync.Mutex
	jobs      map[string]*job
	requests  []domain.JobRequest
	script    []Reply
	startCode int
	startBody string
	content   []byte
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithScript sets the status replies every job walks through. The last reply
// repeats once the script is exhausted.
func WithScript(replies ...Reply) Option {
	return func(s *Server) { s.script = replies }
}

// WithStartReply makes POST /start_download answer with code and a raw body.
func WithStartReply(code int, body string) Option {
	return func(s *Server) {
		s.startCode = code
		s.startBody = body
	}
}

// WithContent sets the bytes served for finished files.
func WithContent(data []byte) Option {
	return func(s *Server) { s.content = data }
}

// NewServer creates a Server. By default a job is pending once and then
// completes with a file under /download/{taskID}.
func NewServer(opts ...Option) *Server {
	s := &Server{
		jobs:    make(map[string]*job),
		script:  []Reply{Pending(0.5), Completed("")},
		content: []byte("stub media content"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/start_download", s.startDownload)
	r.Get("/status/{taskID}", s.status)
	r.Get("/download/{taskID}", s.download)
	r.Get("/files/{name}", s.file)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns every job request received so far.
func (s *Server) Requests() []domain.JobRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.JobRequest(nil), s.requests...)
}

// StatusCalls returns how many status requests were made for taskID.
func (s *Server) StatusCalls(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[taskID]; ok {
		return j.calls
	}
	return 0
}

// TotalStatusCalls returns the number of status requests across all jobs.
func (s *Server) TotalStatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, j := range s.jobs {
		total += j.calls
	}
	return total
}

func (s *Server) startDownload(w http.ResponseWriter, r *http.Request) {
	var req domain.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Format == "" {
		writeError(w, http.StatusBadRequest, "url and format are required")
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	code, body := s.startCode, s.startBody
	s.mu.Unlock()

	if code != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.jobs[id] = &job{request: req}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.StartResponse{TaskID: id})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	idx := j.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	j.calls++
	reply := s.script[idx]
	s.mu.Unlock()

	code := reply.Code
	if code == 0 {
		code = http.StatusOK
	}
	if reply.Raw != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(reply.Raw))
		return
	}
	writeJSON(w, code, reply.Status)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.serveContent(w, id)
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	s.serveContent(w, chi.URLParam(r, "name"))
}

func (s *Server) serveContent(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.content)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorResponse{Error: message})
}
