// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/seo-audit/internal/crawler"
)

const (
	defaultTimeout = 15 * time.Second
	maxRedirects   = 10
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector. Every
// Fetch gets its own collector; connections are pooled in the shared
// transport.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState is written only from the collector goroutine.
type fetchState struct {
	result         crawler.FetchResponse
	err            error
	redirectStatus int
}

type fetchOutcome struct {
	result crawler.FetchResponse
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses are
// returned, not treated as errors; only transport failures are.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	start := time.Now()
	state := &fetchState{}
	timing := &ttfbTransport{base: f.transport, start: start}

	collector := f.buildCollector(ctx, request, timing, state)
	f.configureCollectorHooks(collector, request, start, timing, state)
	return f.runCollector(ctx, collector, request.URL, state)
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request crawler.FetchRequest,
	transport http.RoundTripper,
	state *fetchState,
) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.userAgent(request)),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(f.timeout(request))
	collector.WithTransport(transport)
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) == 1 && req.Response != nil {
			state.redirectStatus = req.Response.StatusCode
		}
		if !request.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	timing *ttfbTransport,
	state *fetchState,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		state.result = crawler.FetchResponse{
			URL:            r.Request.URL.String(),
			StatusCode:     r.StatusCode,
			Headers:        headers,
			Body:           append([]byte(nil), r.Body...),
			Duration:       time.Since(start),
			TTFB:           timing.firstByte(),
			RedirectStatus: state.redirectStatus,
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		state.err = err
	})
}

// runCollector visits url in its own goroutine so ctx cancellation returns
// promptly even if the transport is slow to notice.
func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	state *fetchState,
) (crawler.FetchResponse, error) {
	done := make(chan fetchOutcome, 1)
	go func() {
		if err := collector.Visit(url); err != nil {
			done <- fetchOutcome{err: fmt.Errorf("colly visit failed: %w", err)}
			return
		}
		if state.err != nil {
			done <- fetchOutcome{err: fmt.Errorf("colly response failed: %w", state.err)}
			return
		}
		if state.result.StatusCode == 0 {
			done <- fetchOutcome{err: errors.New("colly returned no response")}
			return
		}
		done <- fetchOutcome{result: state.result}
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case outcome := <-done:
		if outcome.err != nil && ctx.Err() != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		return outcome.result, outcome.err
	}
}

func (f *Fetcher) userAgent(request crawler.FetchRequest) string {
	if request.UserAgent != "" {
		return request.UserAgent
	}
	if f.cfg.UserAgent != "" {
		return f.cfg.UserAgent
	}
	return crawler.DefaultUserAgent
}

func (f *Fetcher) timeout(request crawler.FetchRequest) time.Duration {
	if request.Timeout > 0 {
		return request.Timeout
	}
	if f.cfg.Timeout > 0 {
		return f.cfg.Timeout
	}
	return defaultTimeout
}

func copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// ttfbTransport records the time from fetch start until the headers of the
// last round trip arrived.
type ttfbTransport struct {
	base  http.RoundTripper
	start time.Time

	mu   sync.Mutex
	ttfb time.Duration
}

func (t *ttfbTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.ttfb = time.Since(t.start)
	t.mu.Unlock()
	return resp, nil
}

func (t *ttfbTransport) firstByte() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ttfb
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
