package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/metrics"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 1 << 20
)

// JobService is the subset of queue.JobQueue the API needs.
type JobService interface {
	CreateJob(ctx context.Context, spec audit.JobSpec) (string, error)
	GetJob(ctx context.Context, id string) (*audit.Job, error)
	Stats(ctx context.Context) (audit.QueueStats, error)
}

// Config controls the HTTP surface.
type Config struct {
	RequestTimeout time.Duration
	// Ready reports whether downstream dependencies are reachable. Nil
	// means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the job queue.
type Server struct {
	router chi.Router
	jobs   JobService
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audits/site", s.submit(audit.JobTypeSiteAudit))
		r.Post("/audits/page", s.submit(audit.JobTypePageAudit))
		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/results", s.getResults)
		})
		r.Get("/queue/stats", s.queueStats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		if err := s.cfg.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type auditRequest struct {
	URL     string        `json:"url"`
	Options audit.Options `json:"options"`
}

type submitResponse struct {
	JobID  string          `json:"job_id"`
	Status audit.JobStatus `json:"status"`
}

func (s *Server) submit(jobType audit.JobType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auditRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		target, err := audit.ValidateTargetURL(req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := audit.ValidateOptions(req.Options); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.jobs.CreateJob(r.Context(), audit.JobSpec{
			Type:   jobType,
			Params: audit.JobParams{URL: target.String(), Options: req.Options},
		})
		if err != nil {
			s.writeServiceError(w, "create job", err)
			return
		}
		s.logger.Info("audit queued",
			zap.String("job_id", id),
			zap.String("type", string(jobType)),
			zap.String("url", target.String()))
		writeJSON(w, http.StatusAccepted, submitResponse{JobID: id, Status: audit.JobStatusQueued})
	}
}

// jobView is a job without its results payload.
type jobView struct {
	ID        string          `json:"id"`
	Type      audit.JobType   `json:"type"`
	Status    audit.JobStatus `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Params    audit.JobParams `json:"params"`
	Created   time.Time       `json:"created"`
	Updated   time.Time       `json:"updated"`
	Started   *time.Time      `json:"started,omitempty"`
	Completed *time.Time      `json:"completed,omitempty"`
	Error     *audit.JobError `json:"error,omitempty"`
}

func newJobView(job audit.Job) jobView {
	return jobView{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		Params:    job.Params,
		Created:   job.Created,
		Updated:   job.Updated,
		Started:   job.Started,
		Completed: job.Completed,
		Error:     job.Error,
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newJobView(*job))
}

type resultsResponse struct {
	JobID   string            `json:"job_id"`
	Type    audit.JobType     `json:"type"`
	Results *audit.JobResults `json:"results"`
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if job.Status != audit.JobStatusCompleted {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "job is not completed",
			"status": string(job.Status),
		})
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{JobID: job.ID, Type: job.Type, Results: job.Results})
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "queue stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*audit.Job, bool) {
	id := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "get job", err)
		return nil, false
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, audit.ErrValidation), errors.Is(err, audit.ErrUnknownJobType):
		status = http.StatusBadRequest
	case errors.Is(err, audit.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, audit.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, fmt.Sprintf("%s: %v", op, err))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
