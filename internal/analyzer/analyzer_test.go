package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

// goodPage passes every check.
func goodPage() audit.PageRecord {
	links := make([]audit.Link, 0, 6)
	for _, p := range []string{"/shoes", "/boots", "/sandals", "/socks", "/laces", "/about"} {
		links = append(links, audit.Link{URL: "https://example.com" + p, Text: "Shop " + strings.TrimPrefix(p, "/")})
	}
	return audit.PageRecord{
		URL:         "https://example.com/running-shoes",
		Status:      audit.PageStatusOK,
		StatusCode:  200,
		ContentType: "text/html",
		Title:       "Running Shoes for Every Distance",
		Description: "Compare lightweight running shoes for road and trail, with sizing advice and reviews.",
		H1:          "Running Shoes for Every Distance",
		Headings: audit.Headings{
			{{Text: "Running Shoes for Every Distance"}},
			{{Text: "Road"}, {Text: "Trail"}},
		},
		Links: links,
		Images: []audit.Image{
			{Src: "https://example.com/a.png", Alt: "Road shoe", Width: 10, Height: 10, Loading: "lazy"},
			{Src: "https://example.com/b.png", Alt: "Trail shoe", Width: 10, Height: 10, Loading: "lazy"},
		},
		SEO: audit.SEOData{
			Canonical: "https://example.com/running-shoes/",
			Viewport:  "width=device-width, initial-scale=1",
			OGTags: map[string]string{
				"og:title": "t", "og:description": "d", "og:image": "i", "og:url": "u",
			},
			TwitterTags:    map[string]string{"twitter:card": "summary"},
			StructuredData: []json.RawMessage{json.RawMessage(`{"@type":"Product"}`)},
		},
		Metrics:    audit.PageMetrics{TTFBMs: 120, DOMContentLoadedMs: 800, LoadMs: 1200},
		LoadTimeMs: 1200,
	}
}

func issueTypes(result audit.AnalyzerResult) []string {
	out := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		out = append(out, issue.Type)
	}
	return out
}

func TestCleanPageScoresFull(t *testing.T) {
	t.Parallel()

	page := goodPage()
	for _, a := range []Analyzer{Meta{}, Content{}, Technical{}} {
		result, err := a.Analyze(context.Background(), page, DefaultOptions())
		require.NoError(t, err)
		require.Empty(t, result.Issues, a.Category())
		require.Equal(t, result.MaxScore, result.Score)
		require.Equal(t, 100, result.Percentage)
	}
}

func TestMissingTitleAndDescription(t *testing.T) {
	t.Parallel()

	page := goodPage()
	page.Title = ""
	page.Description = ""

	result, err := Meta{}.Analyze(context.Background(), page, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"missing_title", "missing_meta_description"}, issueTypes(result))
	require.Equal(t, audit.ImpactHigh, result.Issues[0].Impact)
	require.Equal(t, audit.ImpactMedium, result.Issues[1].Impact)
	require.Equal(t, audit.CategoryMeta, result.Issues[0].Category)
	require.Len(t, result.Recommendations, 2)
	require.Equal(t, 11, result.MaxScore)
	require.Equal(t, 9, result.Score)
	require.Equal(t, 82, result.Percentage)
}

func TestMetaChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*audit.PageRecord)
		want   []string
	}{
		{"short title", func(p *audit.PageRecord) { p.Title = "Shoes" }, []string{"title_too_short"}},
		{"long title", func(p *audit.PageRecord) { p.Title = strings.Repeat("a", 61) }, []string{"title_too_long"}},
		{"generic home title", func(p *audit.PageRecord) { p.Title = "Home" }, []string{"title_too_short", "generic_title"}},
		{"untitled", func(p *audit.PageRecord) { p.Title = "Untitled document" }, []string{"generic_title"}},
		{"short description", func(p *audit.PageRecord) { p.Description = "Shoes." }, []string{"description_too_short"}},
		{"long description", func(p *audit.PageRecord) { p.Description = strings.Repeat("d", 161) }, []string{"description_too_long"}},
		{"generic description", func(p *audit.PageRecord) {
			p.Description = "Welcome to our store where you will find every shoe you could want."
		}, []string{"generic_description"}},
		{"missing canonical", func(p *audit.PageRecord) { p.SEO.Canonical = "" }, []string{"missing_canonical"}},
		{"relative canonical", func(p *audit.PageRecord) { p.SEO.Canonical = "/x" }, []string{"invalid_canonical"}},
		{"foreign canonical", func(p *audit.PageRecord) { p.SEO.Canonical = "https://example.com/other" }, []string{"non_self_canonical"}},
		{"noindex", func(p *audit.PageRecord) { p.SEO.Robots = "NOINDEX, follow" }, []string{"noindex"}},
		{"robots none", func(p *audit.PageRecord) { p.SEO.Robots = "none" }, []string{"noindex", "nofollow"}},
		{"missing og", func(p *audit.PageRecord) { delete(p.SEO.OGTags, "og:image") }, []string{"missing_og_tags"}},
		{"missing twitter", func(p *audit.PageRecord) { p.SEO.TwitterTags = nil }, []string{"missing_twitter_card"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			page := goodPage()
			tc.mutate(&page)
			result, err := Meta{}.Analyze(context.Background(), page, Options{})
			require.NoError(t, err)
			require.Equal(t, tc.want, issueTypes(result))
		})
	}
}

func TestContentChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*audit.PageRecord)
		want   []string
	}{
		{"missing h1", func(p *audit.PageRecord) {
			p.H1 = ""
			p.Headings[0] = nil
		}, []string{"missing_h1"}},
		{"multiple h1", func(p *audit.PageRecord) {
			p.Headings[0] = append(p.Headings[0], audit.Heading{Text: "Second"})
		}, []string{"multiple_h1"}},
		{"h1 differs from title", func(p *audit.PageRecord) {
			p.H1 = "Completely unrelated"
			p.Headings[0] = []audit.Heading{{Text: p.H1}}
		}, []string{"h1_different_from_title"}},
		{"skipped level", func(p *audit.PageRecord) {
			p.Headings[3] = []audit.Heading{{Text: "Deep"}}
		}, []string{"skipped_heading_level"}},
		{"no structured data", func(p *audit.PageRecord) { p.SEO.StructuredData = nil }, []string{"missing_structured_data"}},
		{"images missing alt and size", func(p *audit.PageRecord) {
			p.Images[0].Alt = ""
			p.Images[1].Height = 0
		}, []string{"images_missing_alt", "images_missing_dimensions"}},
		{"eager images", func(p *audit.PageRecord) {
			for i := 0; i < 4; i++ {
				p.Images = append(p.Images, audit.Image{Src: "x", Alt: "x", Width: 1, Height: 1})
			}
		}, []string{"images_not_lazy_loaded"}},
		{"no images is fine", func(p *audit.PageRecord) { p.Images = nil }, nil},
		{"empty and generic anchors", func(p *audit.PageRecord) {
			p.Links[0].Text = " "
			p.Links[1].Text = "Read more"
			p.Links[2].Text = "click here"
			p.Links[3].Text = "Download"
		}, []string{"empty_link_text", "generic_link_text"}},
		{"mostly external", func(p *audit.PageRecord) {
			for i := 0; i < 4; i++ {
				p.Links[i].External = true
			}
		}, []string{"excessive_external_links"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			page := goodPage()
			tc.mutate(&page)
			result, err := Content{}.Analyze(context.Background(), page, Options{})
			require.NoError(t, err)
			if tc.want == nil {
				require.Empty(t, result.Issues)
				return
			}
			require.Equal(t, tc.want, issueTypes(result))
		})
	}
}

func TestContentThinPageWithoutLinks(t *testing.T) {
	t.Parallel()

	page := audit.PageRecord{URL: "https://example.com/", Title: "Example Domain", H1: "Example Domain",
		Headings: audit.Headings{{{Text: "Example Domain"}}}}
	result, err := Content{}.Analyze(context.Background(), page, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"thin_content", "missing_structured_data", "no_links"}, issueTypes(result))
	require.Equal(t, 10, result.MaxScore)
	require.Equal(t, 7, result.Score)
}

func TestTechnicalChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*audit.PageRecord)
		want   []string
	}{
		{"unknown status", func(p *audit.PageRecord) { p.StatusCode = 0 }, []string{"unknown_status"}},
		{"error status", func(p *audit.PageRecord) { p.StatusCode = 503 }, []string{"error_status"}},
		{"non standard", func(p *audit.PageRecord) { p.StatusCode = 203 }, []string{"non_standard_status"}},
		{"unfollowed permanent redirect", func(p *audit.PageRecord) {
			p.StatusCode = 301
			p.RedirectURL = "https://example.com/new"
		}, []string{"redirect"}},
		{"unfollowed temporary redirect", func(p *audit.PageRecord) {
			p.StatusCode = 302
			p.RedirectURL = "https://example.com/new"
		}, []string{"redirect", "non_permanent_redirect"}},
		{"followed temporary redirect", func(p *audit.PageRecord) {
			p.RedirectURL = "https://example.com/final"
			p.RedirectStatus = 307
		}, []string{"non_permanent_redirect"}},
		{"followed permanent redirect", func(p *audit.PageRecord) {
			p.RedirectURL = "https://example.com/final"
			p.RedirectStatus = 308
		}, nil},
		{"long url", func(p *audit.PageRecord) { p.URL = "https://example.com/" + strings.Repeat("a", 90) }, []string{"url_too_long"}},
		{"query", func(p *audit.PageRecord) { p.URL = "https://example.com/p?id=1" }, []string{"url_has_parameters"}},
		{"uppercase", func(p *audit.PageRecord) { p.URL = "https://example.com/Shoes" }, []string{"url_uppercase"}},
		{"special chars", func(p *audit.PageRecord) { p.URL = "https://example.com/shoes%20sale" }, []string{"url_special_chars"}},
		{"double slash", func(p *audit.PageRecord) { p.URL = "https://example.com/a//b" }, []string{"url_multiple_slashes"}},
		{"slow", func(p *audit.PageRecord) {
			p.Metrics = audit.PageMetrics{TTFBMs: 700, DOMContentLoadedMs: 2600, LoadMs: 3100}
		}, []string{"slow_page_load", "high_ttfb", "slow_dom_content_loaded"}},
		{"load falls back to fetch time", func(p *audit.PageRecord) {
			p.Metrics.LoadMs = 0
			p.LoadTimeMs = 4000
		}, []string{"slow_page_load"}},
		{"no viewport", func(p *audit.PageRecord) { p.SEO.Viewport = "" }, []string{"missing_viewport"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			page := goodPage()
			tc.mutate(&page)
			result, err := Technical{}.Analyze(context.Background(), page, Options{})
			require.NoError(t, err)
			if tc.want == nil {
				require.Empty(t, result.Issues)
				return
			}
			require.Equal(t, tc.want, issueTypes(result))
		})
	}
}

func TestTechnicalCustomThresholds(t *testing.T) {
	t.Parallel()

	page := goodPage()
	result, err := Technical{}.Analyze(context.Background(), page, Options{SlowLoad: time.Second})
	require.NoError(t, err)
	require.Equal(t, []string{"slow_page_load"}, issueTypes(result))
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	worst := audit.PageRecord{
		URL:         "https://example.com/A//b%20c?x=1&" + strings.Repeat("y", 100),
		StatusCode:  302,
		RedirectURL: "https://example.com/elsewhere",
		Title:       "Untitled",
		SEO: audit.SEOData{
			Canonical: "::bad",
			Robots:    "none",
		},
		Headings: audit.Headings{nil, nil, {{Text: "h3"}}, nil, nil, {{Text: "h6"}}},
		Images:   []audit.Image{{}, {}, {}, {}},
		Metrics:  audit.PageMetrics{TTFBMs: 9000, DOMContentLoadedMs: 9000, LoadMs: 9000},
	}
	for _, a := range []Analyzer{Meta{}, Content{}, Technical{}} {
		result, err := a.Analyze(context.Background(), worst, Options{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, result.Score, 0, a.Category())
		require.LessOrEqual(t, result.Score, result.MaxScore, a.Category())
		require.GreaterOrEqual(t, result.Percentage, 0)
		require.LessOrEqual(t, result.Percentage, 100)
		require.Len(t, result.Recommendations, len(result.Issues))
	}
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	require.Equal(t, 100, Percentage(0, 0))
	require.Equal(t, 0, Percentage(0, 5))
	require.Equal(t, 82, Percentage(9, 11))
	require.Equal(t, 50, Percentage(1, 2))
	require.Equal(t, 67, Percentage(2, 3))
	require.Equal(t, 33, Percentage(1, 3))
}

func TestAnalyzersHonorCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Meta{}.Analyze(ctx, goodPage(), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSetRunsAllCategories(t *testing.T) {
	t.Parallel()

	set := NewSet(nil)
	require.Equal(t, audit.Categories, set.Categories())

	results := set.Run(context.Background(), goodPage(), DefaultOptions())
	require.Len(t, results, 3)
	for _, category := range audit.Categories {
		require.Equal(t, 100, results[category].Percentage)
	}
}

func TestSetIsolatesFailures(t *testing.T) {
	t.Parallel()

	set := NewSet(nil,
		Meta{},
		stubAnalyzer{category: audit.CategoryContent, err: errors.New("boom")},
		stubAnalyzer{category: audit.CategoryTechnical, panicValue: "kaboom"},
	)
	results := set.Run(context.Background(), goodPage(), Options{})

	require.Equal(t, 100, results[audit.CategoryMeta].Percentage)
	for _, category := range []audit.Category{audit.CategoryContent, audit.CategoryTechnical} {
		result := results[category]
		require.Len(t, result.Issues, 1)
		require.Equal(t, "error", result.Issues[0].Type)
		require.Equal(t, audit.ImpactHigh, result.Issues[0].Impact)
		require.Equal(t, category, result.Issues[0].Category)
		require.Equal(t, 0, result.Score)
		require.Equal(t, 1, result.MaxScore)
		require.Equal(t, 0, result.Percentage)
	}
	require.Contains(t, results[audit.CategoryContent].Issues[0].Message, "boom")
	require.Contains(t, results[audit.CategoryTechnical].Issues[0].Message, "kaboom")
}

// --- fakes ---

type stubAnalyzer struct {
	category   audit.Category
	err        error
	panicValue any
}

func (s stubAnalyzer) Category() audit.Category { return s.category }

func (s stubAnalyzer) Analyze(context.Context, audit.PageRecord, Options) (audit.AnalyzerResult, error) {
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	return audit.AnalyzerResult{}, s.err
}
