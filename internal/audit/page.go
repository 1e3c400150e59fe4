package audit

import (
	"encoding/json"
	"strings"
	"time"
)

// PageStatus records how far a page made it through the crawler.
type PageStatus string

// Page status values.
const (
	PageStatusOK      PageStatus = "ok"
	PageStatusSkipped PageStatus = "skipped"
	PageStatusError   PageStatus = "error"
)

// Heading is one h1..h6 element.
type Heading struct {
	Text string `json:"text"`
	ID   string `json:"id,omitempty"`
}

// Headings groups headings by level; index 0 holds h1.
type Headings [6][]Heading

// Level returns the headings for level n (1-6).
func (h Headings) Level(n int) []Heading {
	if n < 1 || n > 6 {
		return nil
	}
	return h[n-1]
}

// Count returns the total number of headings across all levels.
func (h Headings) Count() int {
	total := 0
	for _, level := range h {
		total += len(level)
	}
	return total
}

// Link is an anchor discovered on a page.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Rel      string `json:"rel,omitempty"`
	Target   string `json:"target,omitempty"`
	External bool   `json:"external"`
}

// Image is an img element discovered on a page.
type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Loading string `json:"loading,omitempty"`
}

// Hreflang is an alternate-language link.
type Hreflang struct {
	Href     string `json:"href"`
	Hreflang string `json:"hreflang"`
}

// SEOData holds the head-level metadata relevant to search engines.
type SEOData struct {
	Canonical      string            `json:"canonical,omitempty"`
	Robots         string            `json:"robots,omitempty"`
	Viewport       string            `json:"viewport,omitempty"`
	OGTags         map[string]string `json:"og_tags,omitempty"`
	TwitterTags    map[string]string `json:"twitter_tags,omitempty"`
	StructuredData []json.RawMessage `json:"structured_data,omitempty"`
	Hreflang       []Hreflang        `json:"hreflang,omitempty"`
	AMPLink        string            `json:"amp_link,omitempty"`
}

// PageMetrics are timing measurements collected while fetching. Values
// the fetch strategy cannot observe are zero.
type PageMetrics struct {
	TTFBMs             int64 `json:"ttfb_ms"`
	DOMContentLoadedMs int64 `json:"dom_content_loaded_ms"`
	DOMCompleteMs      int64 `json:"dom_complete_ms"`
	LoadMs             int64 `json:"load_ms"`
}

// PageError describes why a page could not be fetched.
type PageError struct {
	Message string `json:"message"`
}

// PageRecord is the immutable snapshot of one crawled page.
type PageRecord struct {
	ID               string      `json:"id"`
	Seq              int         `json:"seq"`
	URL              string      `json:"url"`
	Depth            int         `json:"depth"`
	Status           PageStatus  `json:"status"`
	StatusCode       int         `json:"status_code"`
	ContentType      string      `json:"content_type,omitempty"`
	RedirectURL      string      `json:"redirect_url,omitempty"`
	RedirectStatus   int         `json:"redirect_status,omitempty"`
	Title            string      `json:"title,omitempty"`
	Description      string      `json:"description,omitempty"`
	H1               string      `json:"h1,omitempty"`
	Headings         Headings    `json:"headings"`
	Links            []Link      `json:"links,omitempty"`
	Images           []Image     `json:"images,omitempty"`
	SEO              SEOData     `json:"seo"`
	Metrics          PageMetrics `json:"metrics"`
	LoadTimeMs       int64       `json:"load_time_ms"`
	RenderedHeadless bool        `json:"rendered_headless,omitempty"`
	CrawledAt        time.Time   `json:"crawled_at"`
	Error            *PageError  `json:"error,omitempty"`
}

// IsHTML reports whether the recorded content type is HTML.
func (p PageRecord) IsHTML() bool {
	return IsHTMLContentType(p.ContentType)
}

// IsHTMLContentType reports whether a Content-Type header names HTML.
// A missing content type is not treated as HTML.
func IsHTMLContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
