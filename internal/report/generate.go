package report

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const (
	maxPrioritized    = 10
	maxHighlights     = 3
	maxPageTopIssues  = 5
	weakestCategories = 2
)

// GenerateOptions controls report rendering.
type GenerateOptions struct {
	IncludeDetails bool
}

// HealthFor maps an overall score to its health label.
func HealthFor(score int) audit.HealthStatus {
	switch {
	case score >= 90:
		return audit.HealthExcellent
	case score >= 70:
		return audit.HealthGood
	case score >= 50:
		return audit.HealthFair
	case score >= 30:
		return audit.HealthPoor
	default:
		return audit.HealthCritical
	}
}

// Generate renders the final report for a site analysis.
func (g *Generator) Generate(site audit.SiteAnalysis, opts GenerateOptions) (audit.Report, error) {
	id, err := g.ids.NewID()
	if err != nil {
		return audit.Report{}, fmt.Errorf("generate report id: %w", err)
	}
	outcomes := sortedOutcomes(site.Pages)
	impacts := countImpacts(outcomes)
	recs := prioritize(site.Recommendations)

	report := audit.Report{
		ID:        id,
		Type:      audit.ReportType,
		Timestamp: g.clock.Now().UTC(),
		AuditTarget: audit.AuditTarget{
			BaseURL: site.BaseURL,
			Scanned: site.CrawlStats.PagesVisited,
		},
		Summary:                    summarize(site, impacts, len(recs)),
		Scores:                     site.Scores,
		PrioritizedRecommendations: recs,
		Pages:                      site.Pages,
	}
	if opts.IncludeDetails {
		report.Details = details(site, outcomes, impacts)
	}

	g.logger.Info("report generated",
		zap.String("report_id", id),
		zap.String("url", site.BaseURL),
		zap.String("health", string(report.Summary.HealthStatus)))
	return report, nil
}

func sortedOutcomes(pages map[string]audit.PageOutcome) []pageEntry {
	out := make([]pageEntry, 0, len(pages))
	for id, outcome := range pages {
		out = append(out, pageEntry{id: id, outcome: outcome})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].outcome.Seq != out[j].outcome.Seq {
			return out[i].outcome.Seq < out[j].outcome.Seq
		}
		return out[i].id < out[j].id
	})
	return out
}

type pageEntry struct {
	id      string
	outcome audit.PageOutcome
}

type impactTally struct {
	total      audit.ImpactCounts
	byCategory map[audit.Category]audit.ImpactCounts
}

func countImpacts(pages []pageEntry) impactTally {
	tally := impactTally{byCategory: make(map[audit.Category]audit.ImpactCounts, len(audit.Categories))}
	for _, c := range audit.Categories {
		tally.byCategory[c] = audit.ImpactCounts{}
	}
	for _, p := range pages {
		if p.outcome.Analysis == nil {
			continue
		}
		for _, issue := range p.outcome.Analysis.Issues {
			tally.total.Add(issue.Impact)
			counts := tally.byCategory[issue.Category]
			counts.Add(issue.Impact)
			tally.byCategory[issue.Category] = counts
		}
	}
	return tally
}

func summarize(site audit.SiteAnalysis, impacts impactTally, recCount int) audit.Summary {
	return audit.Summary{
		HealthStatus:       HealthFor(site.Scores.Overall),
		OverallScore:       site.Scores.Overall,
		TotalIssues:        site.TotalIssues,
		CriticalIssueCount: impacts.total.High,
		Text:               narrative(site, impacts.total.High, recCount),
		TopStrengths:       strengths(site.Scores, impacts.total.High),
		TopWeaknesses:      weaknesses(site, impacts.total.High),
		CategoryScores: audit.CategoryScores{
			Meta:      site.Scores.Meta,
			Content:   site.Scores.Content,
			Technical: site.Scores.Technical,
		},
	}
}

func strengths(scores audit.Scores, high int) []string {
	var out []string
	if scores.Overall >= 80 {
		out = append(out, "Strong overall SEO health")
	}
	for _, c := range audit.Categories {
		score := scores.Get(c)
		switch {
		case score >= 90:
			out = append(out, fmt.Sprintf("Excellent %s optimization (%d/100)", c, score))
		case score >= 80:
			out = append(out, fmt.Sprintf("Strong %s practices (%d/100)", c, score))
		}
	}
	switch {
	case high == 0:
		out = append(out, "No critical SEO issues detected")
	case high <= 2:
		out = append(out, "Few critical SEO issues")
	}
	if len(out) == 0 {
		out = append(out, "Website has potential for SEO improvement")
	}
	return out[:min(len(out), maxHighlights)]
}

func weaknesses(site audit.SiteAnalysis, high int) []string {
	var out []string
	if site.Scores.Overall < 50 {
		out = append(out, "Poor overall SEO health")
	}
	for _, c := range lowestCategories(site.Scores)[:weakestCategories] {
		score := site.Scores.Get(c)
		switch {
		case score < 40:
			out = append(out, fmt.Sprintf("Critical issues with %s (%d/100)", c, score))
		case score < 60:
			out = append(out, fmt.Sprintf("Poor %s optimization (%d/100)", c, score))
		case score < 75:
			out = append(out, fmt.Sprintf("%s needs improvement (%d/100)", capitalize(string(c)), score))
		}
	}
	switch {
	case high > 10:
		out = append(out, fmt.Sprintf("Large number of critical SEO issues (%d)", high))
	case high > 5:
		out = append(out, fmt.Sprintf("Several critical SEO issues (%d)", high))
	}
	if len(site.TopIssues) > 0 && site.TopIssues[0].Count > 5 {
		top := site.TopIssues[0]
		out = append(out, fmt.Sprintf("Widespread issue: %s (%d instances)", top.Type, top.Count))
	}
	if len(out) == 0 {
		out = append(out, "Some opportunities for SEO improvement")
	}
	return out[:min(len(out), maxHighlights)]
}

// lowestCategories orders categories by ascending score, keeping reporting
// order among ties.
func lowestCategories(scores audit.Scores) []audit.Category {
	out := append([]audit.Category(nil), audit.Categories...)
	sort.SliceStable(out, func(i, j int) bool {
		return scores.Get(out[i]) < scores.Get(out[j])
	})
	return out
}

func narrative(site audit.SiteAnalysis, high, recCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The SEO health of %s is %s with an overall score of %d/100. ",
		site.BaseURL, HealthFor(site.Scores.Overall), site.Scores.Overall)
	fmt.Fprintf(&b, "The audit analyzed %d pages and found %d issues", site.CrawlStats.PagesVisited, site.TotalIssues)
	if high > 0 {
		fmt.Fprintf(&b, ", including %d critical issues that should be addressed promptly", high)
	}
	b.WriteString(". ")

	weakest := lowestCategories(site.Scores)[0]
	fmt.Fprintf(&b, "%s-related factors received the lowest score (%d/100) and present the greatest opportunity for improvement. ",
		capitalize(string(weakest)), site.Scores.Get(weakest))

	if recCount > 0 {
		fmt.Fprintf(&b, "This report provides %d actionable recommendations prioritized by their potential impact on your SEO performance.", recCount)
	} else {
		b.WriteString("No specific recommendations were identified.")
	}
	return b.String()
}

func prioritize(recs []audit.SiteRecommendation) []audit.PrioritizedRecommendation {
	out := make([]audit.PrioritizedRecommendation, 0, min(len(recs), maxPrioritized))
	for _, rec := range recs[:min(len(recs), maxPrioritized)] {
		out = append(out, audit.PrioritizedRecommendation{
			ID:            string(rec.Category) + "_" + rec.Type,
			Title:         rec.Message,
			Description:   rec.Details,
			Impact:        rec.Impact,
			Category:      rec.Category,
			AffectedPages: max(rec.AffectedPages, 1),
			Examples:      append([]string{}, rec.ExamplePages...),
		})
	}
	return out
}

func details(site audit.SiteAnalysis, pages []pageEntry, impacts impactTally) *audit.ReportDetails {
	rows := make([]audit.PageDetail, 0, len(pages))
	for _, p := range pages {
		row := audit.PageDetail{ID: p.id, URL: p.outcome.URL}
		if a := p.outcome.Analysis; a != nil {
			scores := a.Scores
			row.Score = scores.Overall
			row.Scores = &scores
			row.IssueCount = a.IssueCount
			row.TopIssues = append([]audit.Issue{}, a.Issues[:min(len(a.Issues), maxPageTopIssues)]...)
		} else {
			row.Skipped = true
			row.Reason = p.outcome.Reason
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Skipped != rows[j].Skipped {
			return !rows[i].Skipped
		}
		return rows[i].Score < rows[j].Score
	})

	return &audit.ReportDetails{
		IssueBreakdown: audit.IssueBreakdown{
			ByCategory:       impacts.byCategory,
			ByImpact:         impacts.total,
			MostCommonIssues: append([]audit.IssueCount{}, site.TopIssues...),
		},
		PageDetails: rows,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
