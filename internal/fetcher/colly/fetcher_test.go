package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/crawler"
)

func TestFetchReturnsBodyAndMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Agent", r.UserAgent())
		w.Header().Set("X-Trace", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte("<title>ok</title>"))
	}))
	defer server.Close()

	f := New(Config{Timeout: time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:       server.URL + "/page",
		UserAgent: "audit-test/1.0",
		Headers:   http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.URL+"/page", resp.URL)
	require.Equal(t, "<title>ok</title>", string(resp.Body))
	require.Equal(t, "text/html; charset=utf-8", resp.Headers.Get("Content-Type"))
	require.Equal(t, "audit-test/1.0", resp.Headers.Get("X-Agent"))
	require.Equal(t, "yes", resp.Headers.Get("X-Trace"))
	require.Positive(t, resp.TTFB)
	require.GreaterOrEqual(t, resp.Duration, resp.TTFB)
	require.Zero(t, resp.RedirectStatus)
	require.False(t, resp.UsedHeadless)
}

func TestFetchUsesDefaultUserAgent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	}))
	defer server.Close()

	resp, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, crawler.DefaultUserAgent, string(resp.Body))
}

func TestFetchReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	resp, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "missing", string(resp.Body))
}

func TestFetchRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("moved here"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("followed", func(t *testing.T) {
		t.Parallel()
		resp, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{
			URL:             server.URL + "/old",
			FollowRedirects: true,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, server.URL+"/new", resp.URL)
		require.Equal(t, http.StatusMovedPermanently, resp.RedirectStatus)
		require.Equal(t, "moved here", string(resp.Body))
	})

	t.Run("not followed", func(t *testing.T) {
		t.Parallel()
		resp, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{
			URL: server.URL + "/old",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
		require.Equal(t, "/new", resp.Headers.Get("Location"))
		require.Equal(t, http.StatusMovedPermanently, resp.RedirectStatus)
	})
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(Config{Timeout: 5 * time.Second}).Fetch(ctx, crawler.FetchRequest{URL: server.URL})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), crawler.FetchRequest{URL: target})
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := crawler.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	state := &fetchState{redirectStatus: http.StatusFound}
	timing := &ttfbTransport{start: time.Now(), ttfb: 7 * time.Millisecond}

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), timing, state)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	require.Equal(t, http.StatusCreated, state.result.StatusCode)
	require.Equal(t, "body", string(state.result.Body))
	require.Equal(t, "ok", state.result.Headers.Get("X-Resp"))
	require.Equal(t, "https://example.com/final", state.result.URL)
	require.Equal(t, 7*time.Millisecond, state.result.TTFB)
	require.Equal(t, http.StatusFound, state.result.RedirectStatus)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, state.err, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	collyReq := &colly.Request{Headers: &http.Header{}}
	copyHeaders(crawler.FetchRequest{}, collyReq)
	require.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// --- fakes ---

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
