package crawler

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL             string
	UserAgent       string
	Timeout         time.Duration
	FollowRedirects bool
	Headers         http.Header
}

// Timing holds browser-observed document timings. Strategies that cannot
// observe a value leave it zero.
type Timing struct {
	DOMContentLoaded time.Duration
	DOMComplete      time.Duration
	Load             time.Duration
}

// FetchResponse is what a Fetcher observed for one request.
type FetchResponse struct {
	// URL is the final URL after any followed redirects.
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	TTFB       time.Duration
	Timing     Timing
	// RedirectStatus is the status of the first redirect hop, if any.
	RedirectStatus int
	UsedHeadless   bool
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}
