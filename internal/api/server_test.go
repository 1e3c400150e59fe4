package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/kv/memory"
	"github.com/JakeFAU/seo-audit/internal/queue"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, Config{})

	rr := serve(server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	ready, _ := newTestServer(t, Config{Ready: func(context.Context) error { return nil }})
	rr := serve(ready, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	down, _ := newTestServer(t, Config{Ready: func(context.Context) error { return errors.New("redis down") }})
	rr = serve(down, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "not ready")
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	require.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, Config{})

	serve(server, http.MethodGet, "/healthz", "")
	rr := serve(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestSubmitSiteAudit(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})

	rr := serve(server, http.MethodPost, "/v1/audits/site",
		`{"url":"https://example.com","options":{"max_pages":5,"include_details":false}}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "job-1", resp.JobID)
	require.Equal(t, audit.JobStatusQueued, resp.Status)

	job, err := q.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, audit.JobTypeSiteAudit, job.Type)
	require.Equal(t, "https://example.com", job.Params.URL)
	require.Equal(t, 5, job.Params.Options.MaxPages)
	require.NotNil(t, job.Params.Options.IncludeDetails)
	require.False(t, *job.Params.Options.IncludeDetails)

	waiting, err := q.Waiting(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"job-1"}, waiting)
}

func TestSubmitPageAudit(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})

	rr := serve(server, http.MethodPost, "/v1/audits/page", `{"url":"http://example.com/about"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	job, err := q.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, audit.JobTypePageAudit, job.Type)
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"url":`, want: "invalid JSON"},
		{name: "missing url", body: `{}`, want: "url is required"},
		{name: "relative url", body: `{"url":"/about"}`, want: "must be absolute"},
		{name: "unsupported scheme", body: `{"url":"ftp://example.com"}`, want: "ftp"},
		{name: "negative max pages", body: `{"url":"https://example.com","options":{"max_pages":-1}}`, want: "max_pages"},
		{name: "negative depth", body: `{"url":"https://example.com","options":{"max_depth":-2}}`, want: "max_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, q := newTestServer(t, Config{})

			rr := serve(server, http.MethodPost, "/v1/audits/site", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Contains(t, rr.Body.String(), tt.want)

			stats, err := q.Stats(context.Background())
			require.NoError(t, err)
			require.Zero(t, stats.TotalJobs)
		})
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})
	ctx := context.Background()

	id, err := q.CreateJob(ctx, audit.JobSpec{
		Type:   audit.JobTypeSiteAudit,
		Params: audit.JobParams{URL: "https://example.com"},
	})
	require.NoError(t, err)
	_, err = q.CompleteJob(ctx, id, audit.JobResults{Report: &audit.Report{}})
	require.NoError(t, err)

	rr := serve(server, http.MethodGet, "/v1/jobs/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, id, body["id"])
	require.Equal(t, "completed", body["status"])
	require.EqualValues(t, 100, body["progress"])
	require.NotContains(t, body, "results")
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, Config{})

	rr := serve(server, http.MethodGet, "/v1/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "job not found")

	rr = serve(server, http.MethodGet, "/v1/jobs/missing/results", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetResultsRequiresCompletion(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})

	id, err := q.CreateJob(context.Background(), audit.JobSpec{
		Type:   audit.JobTypePageAudit,
		Params: audit.JobParams{URL: "https://example.com"},
	})
	require.NoError(t, err)

	rr := serve(server, http.MethodGet, "/v1/jobs/"+id+"/results", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"error":"job is not completed","status":"queued"}`, rr.Body.String())
}

func TestGetResults(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})
	ctx := context.Background()

	id, err := q.CreateJob(ctx, audit.JobSpec{
		Type:   audit.JobTypePageAudit,
		Params: audit.JobParams{URL: "https://example.com"},
	})
	require.NoError(t, err)
	_, err = q.CompleteJob(ctx, id, audit.JobResults{
		Analysis: &audit.PageAnalysis{URL: "https://example.com"},
		Stats:    audit.ResultStats{PagesScanned: 1},
	})
	require.NoError(t, err)

	rr := serve(server, http.MethodGet, "/v1/jobs/"+id+"/results", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp resultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, id, resp.JobID)
	require.Equal(t, audit.JobTypePageAudit, resp.Type)
	require.NotNil(t, resp.Results)
	require.NotNil(t, resp.Results.Analysis)
	require.Equal(t, 1, resp.Results.Stats.PagesScanned)
}

func TestQueueStats(t *testing.T) {
	t.Parallel()
	server, q := newTestServer(t, Config{})
	ctx := context.Background()

	for range 3 {
		_, err := q.CreateJob(ctx, audit.JobSpec{
			Type:   audit.JobTypeSiteAudit,
			Params: audit.JobParams{URL: "https://example.com"},
		})
		require.NoError(t, err)
	}
	_, err := q.GetNextBatch(ctx, 1)
	require.NoError(t, err)

	rr := serve(server, http.MethodGet, "/v1/queue/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stats audit.QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, int64(2), stats.Queue.Waiting)
	require.Equal(t, int64(1), stats.Queue.Processing)
	require.Equal(t, 3, stats.TotalJobs)
	require.Equal(t, 1, stats.Jobs.ByStatus[audit.JobStatusProcessing])
	require.Equal(t, 2, stats.Jobs.ByStatus[audit.JobStatusQueued])
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	t.Parallel()
	store := memory.New()
	q := queue.New(store, fixedClock{}, &seqIDs{}, zap.NewNop())
	server := NewServer(q, Config{}, zap.NewNop())
	require.NoError(t, store.Close())

	rr := serve(server, http.MethodPost, "/v1/audits/site", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(server, http.MethodGet, "/v1/queue/stats", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "internal server error")
}

func TestTimeoutMiddleware(t *testing.T) {
	t.Parallel()

	handler := timeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "request timed out")
}

func newTestServer(t *testing.T, cfg Config) (*Server, *queue.JobQueue) {
	t.Helper()
	q := queue.New(memory.New(), fixedClock{}, &seqIDs{}, zap.NewNop())
	return NewServer(q, cfg, zap.NewNop()), q
}

func serve(server *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

// --- fakes ---

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "job-" + strconv.Itoa(s.n), nil
}
