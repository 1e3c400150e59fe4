// Package detector decides when a page needs a headless render before it
// can be audited.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/seo-audit/internal/crawler"
)

const (
	defaultMinTextLength    = 200
	scriptCoverageThreshold = 25
)

// spaMountSelectors match the empty mount points client-rendered frameworks
// hydrate into.
var spaMountSelectors = []string{
	"#__next",
	"#__nuxt",
	"#root",
	"#app",
	"[data-reactroot]",
	"[ng-app]",
	"[ng-version]",
}

// Heuristic promotes pages whose raw HTML looks like a client-rendered
// shell: no visible text, an empty framework mount point, a noscript
// warning, or markup dominated by inline scripts.
type Heuristic struct {
	// MinTextLength is the visible body text below which a page with
	// scripts counts as a shell.
	MinTextLength int
}

// NewHeuristic creates a new detector. A zero minTextLength selects the
// default.
func NewHeuristic(minTextLength int) *Heuristic {
	if minTextLength <= 0 {
		minTextLength = defaultMinTextLength
	}
	return &Heuristic{MinTextLength: minTextLength}
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}

	hasScripts := doc.Find("script[src], script:not([type='application/ld+json'])").Length() > 0
	if !hasScripts {
		return false
	}
	if emptyMountPoint(doc) {
		return true
	}
	if noscriptWarning(doc) {
		return true
	}
	if len(visibleText(doc)) < h.MinTextLength {
		return true
	}
	return scriptDensityHigh(body)
}

func emptyMountPoint(doc *goquery.Document) bool {
	for _, selector := range spaMountSelectors {
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if strings.TrimSpace(sel.Text()) == "" {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

func noscriptWarning(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("noscript").Text())
	return strings.Contains(text, "enable javascript") || strings.Contains(text, "requires javascript")
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// scriptDensityHigh reports whether <script> elements cover a large share
// of the raw markup.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			coverage += total - start
			break
		}
		next := start + end + len(closeTag)
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= scriptCoverageThreshold
}
