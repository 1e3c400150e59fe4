// Package report turns crawled pages into page analyses, a site-wide
// aggregate and the final audit report.
package report

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/seo-audit/internal/analyzer"
	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/crawler"
)

// DefaultParallelism bounds concurrent page analyses within one site.
const DefaultParallelism = 4

const (
	maxTopIssues    = 10
	maxExamplePages = 5
)

// Options configures a Generator.
type Options struct {
	Parallelism int
	Analyzer    analyzer.Options
}

// Generator analyzes crawl output and renders reports.
type Generator struct {
	set    *analyzer.Set
	opts   Options
	ids    audit.IDGenerator
	clock  audit.Clock
	logger *zap.Logger
}

// New constructs a Generator. A nil set runs the stock analyzers.
func New(set *analyzer.Set, opts Options, ids audit.IDGenerator, clock audit.Clock, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if set == nil {
		set = analyzer.NewSet(logger)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Generator{set: set, opts: opts, ids: ids, clock: clock, logger: logger}
}

// AnalyzePage runs every analyzer on page and merges the results.
func (g *Generator) AnalyzePage(ctx context.Context, page audit.PageRecord) audit.PageAnalysis {
	categories := g.set.Run(ctx, page, g.opts.Analyzer)

	analysis := audit.PageAnalysis{
		URL:             page.URL,
		Timestamp:       g.clock.Now().UTC(),
		Categories:      categories,
		Issues:          []audit.Issue{},
		Recommendations: []audit.Recommendation{},
	}
	var score, maxScore int
	for _, category := range g.set.Categories() {
		result := categories[category]
		score += result.Score
		maxScore += result.MaxScore
		analysis.Scores.Set(category, result.Percentage)
		analysis.Issues = append(analysis.Issues, result.Issues...)
		analysis.Recommendations = append(analysis.Recommendations, result.Recommendations...)
	}
	analysis.Scores.Overall = analyzer.Percentage(score, maxScore)
	analysis.IssueCount = len(analysis.Issues)
	sort.SliceStable(analysis.Recommendations, func(i, j int) bool {
		return analysis.Recommendations[i].Impact.Rank() < analysis.Recommendations[j].Impact.Rank()
	})
	return analysis
}

// skipReason reports why a page cannot be analyzed, or "" when it can.
func skipReason(page audit.PageRecord) string {
	switch {
	case page.Status == audit.PageStatusError:
		return "error"
	case page.StatusCode >= http.StatusBadRequest:
		return "status_" + strconv.Itoa(page.StatusCode)
	case page.Status == audit.PageStatusSkipped || !page.IsHTML():
		return "not_html"
	default:
		return ""
	}
}

// AnalyzeSite analyzes every eligible page of a crawl and aggregates the
// results. Pages are processed in crawl order so identical input yields
// identical output.
func (g *Generator) AnalyzeSite(ctx context.Context, crawl crawler.Result) (audit.SiteAnalysis, error) {
	pages := orderedPages(crawl.Pages)
	outcomes := make([]audit.PageOutcome, len(pages))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Parallelism)
	for i, page := range pages {
		outcomes[i] = audit.PageOutcome{URL: page.URL, Seq: page.Seq}
		if reason := skipReason(page); reason != "" {
			outcomes[i].Skipped = true
			outcomes[i].Reason = reason
			if page.Error != nil {
				outcomes[i].Error = page.Error.Message
			}
			continue
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			analysis := g.AnalyzePage(egCtx, page)
			outcomes[i].Analysis = &analysis
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return audit.SiteAnalysis{}, fmt.Errorf("analyze site %s: %w", crawl.BaseURL, err)
	}

	site := aggregate(outcomes)
	site.BaseURL = crawl.BaseURL
	site.Timestamp = g.clock.Now().UTC()
	site.CrawlStats = audit.CrawlStats{
		PagesVisited:    crawl.PagesVisited,
		CrawlDurationMs: crawl.Duration.Milliseconds(),
	}
	site.Pages = make(map[string]audit.PageOutcome, len(pages))
	for i, page := range pages {
		site.Pages[page.ID] = outcomes[i]
	}

	g.logger.Info("site analyzed",
		zap.String("url", crawl.BaseURL),
		zap.Int("pages", len(pages)),
		zap.Int("overall_score", site.Scores.Overall),
		zap.Int("issues", site.TotalIssues))
	return site, nil
}

func orderedPages(pages map[string]audit.PageRecord) []audit.PageRecord {
	out := make([]audit.PageRecord, 0, len(pages))
	for _, page := range pages {
		out = append(out, page)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// aggregate computes scores, issue counts and deduplicated recommendations
// from outcomes, which must already be in crawl order.
func aggregate(outcomes []audit.PageOutcome) audit.SiteAnalysis {
	var (
		sums     audit.Scores
		analyzed int
		site     = audit.SiteAnalysis{
			IssueTypeCounts: map[string]int{},
			TopIssues:       []audit.IssueCount{},
			Recommendations: []audit.SiteRecommendation{},
		}
		recIndex = map[string]int{}
	)
	for _, outcome := range outcomes {
		if outcome.Analysis == nil {
			continue
		}
		a := outcome.Analysis
		analyzed++
		sums.Overall += a.Scores.Overall
		sums.Meta += a.Scores.Meta
		sums.Content += a.Scores.Content
		sums.Technical += a.Scores.Technical

		for _, issue := range a.Issues {
			site.TotalIssues++
			site.IssueTypeCounts[issue.Type]++
		}
		for _, rec := range a.Recommendations {
			key := string(rec.Category) + ":" + rec.Type
			idx, ok := recIndex[key]
			if !ok {
				idx = len(site.Recommendations)
				recIndex[key] = idx
				site.Recommendations = append(site.Recommendations, audit.SiteRecommendation{
					Recommendation: rec,
					Pages:          []string{},
				})
			}
			site.Recommendations[idx].Count++
			site.Recommendations[idx].Pages = append(site.Recommendations[idx].Pages, outcome.URL)
		}
	}

	if analyzed > 0 {
		site.Scores = audit.Scores{
			Overall:   roundedMean(sums.Overall, analyzed),
			Meta:      roundedMean(sums.Meta, analyzed),
			Content:   roundedMean(sums.Content, analyzed),
			Technical: roundedMean(sums.Technical, analyzed),
		}
	}

	sort.SliceStable(site.Recommendations, func(i, j int) bool {
		a, b := site.Recommendations[i], site.Recommendations[j]
		if a.Impact.Rank() != b.Impact.Rank() {
			return a.Impact.Rank() < b.Impact.Rank()
		}
		return a.Count > b.Count
	})
	for i := range site.Recommendations {
		rec := &site.Recommendations[i]
		rec.AffectedPages = rec.Count
		rec.ExamplePages = append([]string{}, rec.Pages[:min(len(rec.Pages), maxExamplePages)]...)
	}

	for issueType, count := range site.IssueTypeCounts {
		site.TopIssues = append(site.TopIssues, audit.IssueCount{Type: issueType, Count: count})
	}
	sort.Slice(site.TopIssues, func(i, j int) bool {
		a, b := site.TopIssues[i], site.TopIssues[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})
	if len(site.TopIssues) > maxTopIssues {
		site.TopIssues = site.TopIssues[:maxTopIssues]
	}
	return site
}

func roundedMean(sum, n int) int {
	return (2*sum + n) / (2 * n)
}
