package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/metrics"
)

// Policy defaults.
const (
	DefaultMaxPages  = 100
	DefaultMaxDepth  = 3
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "SEOAuditBot/1.0 (+https://github.com/JakeFAU/seo-audit)"
)

// Policy bounds one crawl.
type Policy struct {
	MaxPages        int
	MaxDepth        int
	Timeout         time.Duration
	UserAgent       string
	FollowRedirects bool
	IgnoreRobotsTxt bool
	AllowHeadless   bool
}

// DefaultPolicy returns the policy used when a job supplies no options.
func DefaultPolicy() Policy {
	return Policy{
		MaxPages:        DefaultMaxPages,
		MaxDepth:        DefaultMaxDepth,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		FollowRedirects: true,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.MaxDepth < 0 {
		p.MaxDepth = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.UserAgent == "" {
		p.UserAgent = DefaultUserAgent
	}
	return p
}

// Result is the output of one crawl.
type Result struct {
	BaseURL      string
	PagesVisited int
	Duration     time.Duration
	Pages        map[string]audit.PageRecord
	SitemapURLs  []string
}

// Crawler runs breadth-first crawls.
type Crawler struct {
	fetcher  Fetcher
	headless Fetcher
	detector HeadlessDetector
	limiter  Limiter
	ids      audit.IDGenerator
	clock    audit.Clock
	logger   *zap.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithHeadless enables promotion to a headless fetcher when detector
// asks for it and the policy allows it.
func WithHeadless(fetcher Fetcher, detector HeadlessDetector) Option {
	return func(c *Crawler) {
		c.headless = fetcher
		c.detector = detector
	}
}

// WithLimiter throttles fetches per host.
func WithLimiter(limiter Limiter) Option {
	return func(c *Crawler) {
		c.limiter = limiter
	}
}

// New constructs a Crawler around the primary fetcher.
func New(fetcher Fetcher, ids audit.IDGenerator, clock audit.Clock, logger *zap.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		fetcher: fetcher,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl visits at most policy.MaxPages same-host pages reachable from seed.
// Page-level failures are recorded in the page and never abort the crawl.
// If ctx ends early the pages collected so far are returned with ctx's
// error.
func (c *Crawler) Crawl(ctx context.Context, seed string, policy Policy) (Result, error) {
	policy = policy.withDefaults()
	seedURL, err := audit.ValidateTargetURL(seed)
	if err != nil {
		return Result{}, err
	}
	started := c.clock.Now()
	s := newSession(normalize(seedURL), policy)

	var sitemaps []string
	if !policy.IgnoreRobotsTxt {
		s.robots = c.loadRobots(ctx, s.seed, policy)
		if s.robots != nil {
			sitemaps = s.robots.sitemaps
		}
	}

	s.enqueue(s.seed, 0)
	if policy.MaxDepth >= 1 && len(sitemaps) > 0 {
		for _, raw := range c.loadSitemapPages(ctx, s.seed, sitemaps, policy, policy.MaxPages) {
			if u, err := url.Parse(raw); err == nil && s.shouldCrawl(u, 1) {
				s.enqueue(u, 1)
			}
		}
	}

	logger := c.logger.With(zap.String("seed", s.seed.String()))
	logger.Info("crawl started",
		zap.Int("max_pages", policy.MaxPages),
		zap.Int("max_depth", policy.MaxDepth))

	var crawlErr error
	for s.more() {
		if err := ctx.Err(); err != nil {
			crawlErr = fmt.Errorf("crawl interrupted: %w", err)
			break
		}
		entry, _ := s.next()
		if !s.shouldCrawl(entry.url, entry.depth) {
			continue
		}
		s.markVisited(entry.url)

		page := c.crawlPage(ctx, s, entry)
		s.record(page)
		metrics.ObserveCrawl(s.seed.Host, string(page.Status))

		if page.Status != audit.PageStatusOK {
			continue
		}
		for _, link := range page.Links {
			if link.External {
				continue
			}
			u, err := url.Parse(link.URL)
			if err != nil {
				continue
			}
			if s.shouldCrawl(u, entry.depth+1) {
				s.enqueue(u, entry.depth+1)
			}
		}
	}

	result := Result{
		BaseURL:      baseURL(s.seed),
		PagesVisited: len(s.visited),
		Duration:     c.clock.Now().Sub(started),
		Pages:        s.pages,
		SitemapURLs:  append([]string{}, sitemaps...),
	}
	logger.Info("crawl finished",
		zap.Int("pages", result.PagesVisited),
		zap.Duration("duration", result.Duration),
		zap.Error(crawlErr))
	return result, crawlErr
}

func (c *Crawler) crawlPage(ctx context.Context, s *session, entry frontierEntry) audit.PageRecord {
	target := entry.url.String()
	rec := audit.PageRecord{
		ID:        c.pageID(s.seq),
		Seq:       s.seq,
		URL:       target,
		Depth:     entry.depth,
		CrawledAt: c.clock.Now().UTC(),
	}

	resp, err := c.fetch(ctx, target, s.policy)
	if err != nil {
		fetchErr := &audit.FetchError{URL: target, Err: err}
		rec.Status = audit.PageStatusError
		rec.Error = &audit.PageError{Message: fetchErr.Error()}
		c.logger.Warn("page fetch failed", zap.String("url", target), zap.Error(err))
		return rec
	}

	rec.StatusCode = resp.StatusCode
	rec.ContentType = resp.Headers.Get("Content-Type")
	rec.LoadTimeMs = resp.Duration.Milliseconds()
	rec.RenderedHeadless = resp.UsedHeadless
	rec.RedirectStatus = resp.RedirectStatus
	rec.Metrics = audit.PageMetrics{
		TTFBMs:             resp.TTFB.Milliseconds(),
		DOMContentLoadedMs: resp.Timing.DOMContentLoaded.Milliseconds(),
		DOMCompleteMs:      resp.Timing.DOMComplete.Milliseconds(),
		LoadMs:             resp.Timing.Load.Milliseconds(),
	}
	if rec.Metrics.LoadMs == 0 {
		rec.Metrics.LoadMs = rec.LoadTimeMs
	}
	rec.RedirectURL = redirectTarget(entry.url, resp)

	if resp.StatusCode >= http.StatusBadRequest || !audit.IsHTMLContentType(rec.ContentType) {
		rec.Status = audit.PageStatusSkipped
		return rec
	}

	base := entry.url
	if final, err := url.Parse(resp.URL); err == nil && final.IsAbs() {
		base = final
	}
	if err := extractPage(&rec, resp.Body, base); err != nil {
		rec.Status = audit.PageStatusError
		rec.Error = &audit.PageError{Message: err.Error()}
		return rec
	}
	rec.Status = audit.PageStatusOK
	return rec
}

// wait blocks until the limiter admits a request to target.
func (c *Crawler) wait(ctx context.Context, target string) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, target)
}

// fetch waits for the host's rate limit, fetches with the primary strategy
// and promotes to headless when the detector asks for it.
func (c *Crawler) fetch(ctx context.Context, target string, policy Policy) (FetchResponse, error) {
	if err := c.wait(ctx, target); err != nil {
		return FetchResponse{}, err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	request := FetchRequest{
		URL:             target,
		UserAgent:       policy.UserAgent,
		Timeout:         policy.Timeout,
		FollowRedirects: policy.FollowRedirects,
	}
	resp, err := c.fetcher.Fetch(fetchCtx, request)
	if err != nil {
		return FetchResponse{}, err
	}
	if !policy.AllowHeadless || c.headless == nil || c.detector == nil {
		return resp, nil
	}
	if !audit.IsHTMLContentType(resp.Headers.Get("Content-Type")) || !c.detector.ShouldPromote(resp) {
		return resp, nil
	}
	rendered, err := c.headless.Fetch(fetchCtx, request)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return FetchResponse{}, err
		}
		c.logger.Warn("headless promotion failed; keeping probe response",
			zap.String("url", target), zap.Error(err))
		return resp, nil
	}
	c.logger.Debug("headless promotion applied", zap.String("url", target))
	if rendered.Headers == nil {
		rendered.Headers = http.Header{}
	}
	if rendered.Headers.Get("Content-Type") == "" {
		rendered.Headers.Set("Content-Type", resp.Headers.Get("Content-Type"))
	}
	if rendered.TTFB == 0 {
		rendered.TTFB = resp.TTFB
	}
	if rendered.RedirectStatus == 0 {
		rendered.RedirectStatus = resp.RedirectStatus
	}
	return rendered, nil
}

func (c *Crawler) pageID(seq int) string {
	if c.ids != nil {
		if id, err := c.ids.NewID(); err == nil {
			return id
		}
	}
	return fmt.Sprintf("page-%d", seq)
}

// redirectTarget returns where the request ended up (followed redirects)
// or where it was told to go (unfollowed 3xx).
func redirectTarget(requested *url.URL, resp FetchResponse) string {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Headers.Get("Location"); loc != "" {
			if resolved, ok := resolve(requested, loc); ok {
				return resolved.String()
			}
			return loc
		}
	}
	if resp.URL == "" {
		return ""
	}
	final, err := url.Parse(resp.URL)
	if err != nil {
		return ""
	}
	if normalize(final).String() == normalize(requested).String() {
		return ""
	}
	return final.String()
}
