// Package analyzer scores a crawled page against the SEO rubric. Each
// analyzer owns one category and reports issues, paired recommendations
// and a weighted score.
package analyzer

import (
	"context"
	"time"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

// Analyzer inspects one page for one category of issues.
type Analyzer interface {
	Category() audit.Category
	Analyze(ctx context.Context, page audit.PageRecord, opts Options) (audit.AnalyzerResult, error)
}

// Options tunes the thresholds that depend on the audit environment.
type Options struct {
	SlowLoad             time.Duration
	HighTTFB             time.Duration
	SlowDOMContentLoaded time.Duration
}

// DefaultOptions returns the stock rubric thresholds.
func DefaultOptions() Options {
	return Options{
		SlowLoad:             3000 * time.Millisecond,
		HighTTFB:             600 * time.Millisecond,
		SlowDOMContentLoaded: 2500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SlowLoad <= 0 {
		o.SlowLoad = d.SlowLoad
	}
	if o.HighTTFB <= 0 {
		o.HighTTFB = d.HighTTFB
	}
	if o.SlowDOMContentLoaded <= 0 {
		o.SlowDOMContentLoaded = d.SlowDOMContentLoaded
	}
	return o
}

// findings accumulates the outcome of a sequence of weighted checks.
type findings struct {
	category audit.Category
	result   audit.AnalyzerResult
}

func newFindings(category audit.Category) *findings {
	return &findings{
		category: category,
		result: audit.AnalyzerResult{
			Issues:          []audit.Issue{},
			Recommendations: []audit.Recommendation{},
		},
	}
}

// weigh adds a check's weight to the maximum score.
func (f *findings) weigh(weight int) {
	f.result.MaxScore += weight
}

// flag records an issue together with its remediation.
func (f *findings) flag(issueType string, impact audit.Impact, message string, details map[string]any, fix, why string) {
	f.result.Issues = append(f.result.Issues, audit.Issue{
		Type:     issueType,
		Message:  message,
		Impact:   impact,
		Category: f.category,
		Details:  details,
	})
	f.result.Recommendations = append(f.result.Recommendations, audit.Recommendation{
		Type:     issueType,
		Message:  fix,
		Impact:   impact,
		Category: f.category,
		Details:  why,
	})
}

func (f *findings) finish() audit.AnalyzerResult {
	f.result.Score = max(0, f.result.MaxScore-len(f.result.Issues))
	f.result.Percentage = Percentage(f.result.Score, f.result.MaxScore)
	return f.result
}

// Percentage returns round(100*score/maxScore), or 100 when nothing was
// weighed.
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 100
	}
	return (200*score + maxScore) / (2 * maxScore)
}

// failedResult is the synthetic result of an analyzer that errored.
func failedResult(category audit.Category, err error) audit.AnalyzerResult {
	return audit.AnalyzerResult{
		Issues: []audit.Issue{{
			Type:     "error",
			Message:  "analysis failed: " + err.Error(),
			Impact:   audit.ImpactHigh,
			Category: category,
		}},
		Recommendations: []audit.Recommendation{},
		Score:           0,
		MaxScore:        1,
		Percentage:      0,
	}
}
