package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsStatusAndRoute(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Patch("/v1/jobs/{job_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Patch("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/v1/jobs/a", "/v1/jobs/b", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, path, nil))
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PATCH", "202")); val != 2 {
		t.Errorf("expected 2 PATCH 202 requests, got %f", val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PATCH", "404")); val != 1 {
		t.Errorf("expected 1 PATCH 404 request, got %f", val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val < 2 {
		t.Errorf("expected route-labeled duration series, got %d", val)
	}
}

func TestMiddlewareDefaultsToOK(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Put("/implicit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/implicit", nil))

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PUT", "200")); val != 1 {
		t.Errorf("expected 1 PUT 200 request, got %f", val)
	}
}
