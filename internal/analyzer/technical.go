package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const maxURLLength = 100

var (
	upperCase    = regexp.MustCompile(`[A-Z]`)
	specialChars = regexp.MustCompile(`[^\w\-./]`)
)

// Technical checks status codes, redirects, URL shape, speed and the
// mobile viewport.
type Technical struct{}

// Category implements Analyzer.
func (Technical) Category() audit.Category { return audit.CategoryTechnical }

// Analyze implements Analyzer.
func (t Technical) Analyze(ctx context.Context, page audit.PageRecord, opts Options) (audit.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return audit.AnalyzerResult{}, err
	}
	opts = opts.withDefaults()
	f := newFindings(t.Category())
	checkStatus(f, page)
	checkRedirects(f, page)
	checkURL(f, page)
	checkSpeed(f, page, opts)
	checkViewport(f, page)
	return f.finish(), nil
}

func checkStatus(f *findings, page audit.PageRecord) {
	f.weigh(1)
	code := page.StatusCode
	switch {
	case code == 0:
		f.flag("unknown_status", audit.ImpactHigh,
			"Page returned no status code", nil,
			"Find out why the server response carried no status",
			"Search engines decide how to treat a URL from its status code.")
	case code >= http.StatusBadRequest:
		f.flag("error_status", audit.ImpactHigh,
			fmt.Sprintf("Page returned HTTP %d", code),
			map[string]any{"status_code": code},
			fmt.Sprintf("Fix the HTTP %d response", code),
			"Error responses are not indexed and frustrate visitors.")
	case code >= 300:
		// Reported by checkRedirects.
	case code != http.StatusOK:
		f.flag("non_standard_status", audit.ImpactMedium,
			fmt.Sprintf("Page returned HTTP %d instead of 200", code),
			map[string]any{"status_code": code},
			fmt.Sprintf("Check why the page answers with HTTP %d", code),
			"Unusual success codes can be handled unpredictably by crawlers.")
	}
}

func checkRedirects(f *findings, page audit.PageRecord) {
	f.weigh(1)
	code := page.StatusCode
	if code >= 300 && code < 400 {
		target := page.RedirectURL
		if target == "" {
			target = "unknown"
		}
		f.flag("redirect", audit.ImpactMedium,
			fmt.Sprintf("Page answers with a %d redirect", code),
			map[string]any{"status_code": code, "redirect_to": target},
			"Link straight to the final URL",
			"Each redirect hop costs load time and dilutes link signals.")
	}
	if page.RedirectURL == "" {
		return
	}
	hop := page.RedirectStatus
	if hop == 0 {
		hop = code
	}
	if hop != http.StatusMovedPermanently && hop != http.StatusPermanentRedirect {
		f.flag("non_permanent_redirect", audit.ImpactMedium,
			fmt.Sprintf("Page redirects with temporary status %d", hop),
			map[string]any{"status_code": hop, "redirect_to": page.RedirectURL},
			"Use a 301 or 308 for moves that are permanent",
			"Temporary redirects keep ranking signals on the old URL.")
	}
}

func checkURL(f *findings, page audit.PageRecord) {
	f.weigh(2)
	u, err := url.Parse(page.URL)
	if err != nil {
		return
	}
	if n := len(page.URL); n > maxURLLength {
		f.flag("url_too_long", audit.ImpactLow,
			fmt.Sprintf("URL is longer than %d characters", maxURLLength),
			map[string]any{"url": page.URL, "length": n},
			"Shorten the URL",
			"Short URLs are easier to read, share and remember.")
	}
	if u.RawQuery != "" {
		f.flag("url_has_parameters", audit.ImpactLow,
			"URL has query parameters",
			map[string]any{"parameters": "?" + u.RawQuery},
			"Prefer clean path-based URLs",
			"Parameterized URLs tend to produce duplicate content.")
	}
	path := u.EscapedPath()
	if upperCase.MatchString(path) {
		f.flag("url_uppercase", audit.ImpactLow,
			"URL path has uppercase letters",
			map[string]any{"path": path},
			"Use lowercase URLs",
			"Paths are case sensitive, so mixed case invites duplicates.")
	}
	if specialChars.MatchString(path) {
		f.flag("url_special_chars", audit.ImpactLow,
			"URL path has special characters",
			map[string]any{"path": path},
			"Limit URL paths to letters, digits, hyphens, dots and slashes",
			"Special characters must be percent-encoded and are hard to read.")
	}
	if strings.Contains(path, "//") {
		f.flag("url_multiple_slashes", audit.ImpactLow,
			"URL path has consecutive slashes",
			map[string]any{"path": path},
			"Collapse repeated slashes in the URL",
			"Repeated slashes can make one page reachable at several URLs.")
	}
}

func checkSpeed(f *findings, page audit.PageRecord, opts Options) {
	f.weigh(3)
	load := time.Duration(page.Metrics.LoadMs) * time.Millisecond
	if load == 0 {
		load = time.Duration(page.LoadTimeMs) * time.Millisecond
	}
	if load > opts.SlowLoad {
		f.flag("slow_page_load", audit.ImpactHigh,
			fmt.Sprintf("Page took %dms to load", load.Milliseconds()),
			map[string]any{"load_time_ms": load.Milliseconds()},
			fmt.Sprintf("Bring load time under %s", opts.SlowLoad),
			"Slow pages lose visitors and rank lower.")
	}
	ttfb := time.Duration(page.Metrics.TTFBMs) * time.Millisecond
	if ttfb > opts.HighTTFB {
		f.flag("high_ttfb", audit.ImpactMedium,
			fmt.Sprintf("Time to first byte was %dms", ttfb.Milliseconds()),
			map[string]any{"ttfb_ms": ttfb.Milliseconds()},
			"Reduce server response time",
			"A slow first byte delays everything that follows.")
	}
	dcl := time.Duration(page.Metrics.DOMContentLoadedMs) * time.Millisecond
	if dcl > opts.SlowDOMContentLoaded {
		f.flag("slow_dom_content_loaded", audit.ImpactMedium,
			fmt.Sprintf("DOMContentLoaded fired after %dms", dcl.Milliseconds()),
			map[string]any{"dom_content_loaded_ms": dcl.Milliseconds()},
			"Trim render-blocking scripts and styles",
			"Content that parses late keeps visitors waiting.")
	}
}

func checkViewport(f *findings, page audit.PageRecord) {
	f.weigh(1)
	if strings.TrimSpace(page.SEO.Viewport) != "" {
		return
	}
	f.flag("missing_viewport", audit.ImpactHigh,
		"Page has no viewport meta tag", nil,
		`Add <meta name="viewport" content="width=device-width, initial-scale=1">`,
		"Without a viewport the page renders at desktop width on phones.")
}
