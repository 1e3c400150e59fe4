package analyzer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/metrics"
)

// Set runs a fixed group of analyzers against a page.
type Set struct {
	analyzers []Analyzer
	logger    *zap.Logger
}

// NewSet builds a Set. With no analyzers it uses Meta, Content and
// Technical.
func NewSet(logger *zap.Logger, analyzers ...Analyzer) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(analyzers) == 0 {
		analyzers = []Analyzer{Meta{}, Content{}, Technical{}}
	}
	return &Set{analyzers: analyzers, logger: logger}
}

// Categories lists the categories the set reports, in run order.
func (s *Set) Categories() []audit.Category {
	out := make([]audit.Category, 0, len(s.analyzers))
	for _, a := range s.analyzers {
		out = append(out, a.Category())
	}
	return out
}

// Run executes every analyzer concurrently. A failing or panicking
// analyzer yields a single high-impact "error" issue for its category and
// never affects the others.
func (s *Set) Run(ctx context.Context, page audit.PageRecord, opts Options) map[audit.Category]audit.AnalyzerResult {
	results := make([]audit.AnalyzerResult, len(s.analyzers))
	var wg sync.WaitGroup
	for i, a := range s.analyzers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.runOne(ctx, a, page, opts)
		}()
	}
	wg.Wait()

	out := make(map[audit.Category]audit.AnalyzerResult, len(s.analyzers))
	for i, a := range s.analyzers {
		out[a.Category()] = results[i]
	}
	return out
}

func (s *Set) runOne(ctx context.Context, a Analyzer, page audit.PageRecord, opts Options) (result audit.AnalyzerResult) {
	category := a.Category()
	defer func() {
		if rec := recover(); rec != nil {
			result = s.fail(page, category, fmt.Errorf("panic: %v", rec))
		}
	}()
	res, err := a.Analyze(ctx, page, opts)
	if err != nil {
		return s.fail(page, category, err)
	}
	return res
}

func (s *Set) fail(page audit.PageRecord, category audit.Category, err error) audit.AnalyzerResult {
	analysisErr := &audit.AnalysisError{Category: category, Err: err}
	s.logger.Error("analyzer failed",
		zap.String("url", page.URL),
		zap.String("category", string(category)),
		zap.Error(analysisErr))
	metrics.ObserveAnalyzerFailure(string(category))
	return failedResult(category, err)
}
