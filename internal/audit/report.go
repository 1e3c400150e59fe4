package audit

import "time"

// PageAnalysis is the merged output of the analyzer set for one page.
type PageAnalysis struct {
	URL             string                      `json:"url"`
	Timestamp       time.Time                   `json:"timestamp"`
	Scores          Scores                      `json:"scores"`
	Categories      map[Category]AnalyzerResult `json:"categories"`
	Issues          []Issue                     `json:"issues"`
	IssueCount      int                         `json:"issue_count"`
	Recommendations []Recommendation            `json:"recommendations"`
}

// PageOutcome is one entry of a site analysis page map: either an analysis
// or the reason the page was skipped.
type PageOutcome struct {
	URL      string        `json:"url"`
	Seq      int           `json:"seq"`
	Skipped  bool          `json:"skipped,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Analysis *PageAnalysis `json:"analysis,omitempty"`
}

// IssueCount pairs an issue type with how often it occurred.
type IssueCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// SiteRecommendation is a recommendation deduplicated across pages.
type SiteRecommendation struct {
	Recommendation
	Pages         []string `json:"pages"`
	Count         int      `json:"count"`
	AffectedPages int      `json:"affected_pages"`
	ExamplePages  []string `json:"example_pages"`
}

// CrawlStats summarizes the crawl behind a site analysis.
type CrawlStats struct {
	PagesVisited    int   `json:"pages_visited"`
	CrawlDurationMs int64 `json:"crawl_duration_ms"`
}

// SiteAnalysis aggregates page analyses across a crawl.
type SiteAnalysis struct {
	BaseURL         string                 `json:"base_url"`
	Timestamp       time.Time              `json:"timestamp"`
	CrawlStats      CrawlStats             `json:"crawl_stats"`
	Scores          Scores                 `json:"scores"`
	TotalIssues     int                    `json:"total_issues"`
	IssueTypeCounts map[string]int         `json:"issue_type_counts"`
	TopIssues       []IssueCount           `json:"top_issues"`
	Recommendations []SiteRecommendation   `json:"recommendations"`
	Pages           map[string]PageOutcome `json:"pages"`
}

// HealthStatus is the headline label of a report.
type HealthStatus string

// Health labels, best first.
const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthCritical  HealthStatus = "critical"
)

// AuditTarget names what was audited.
type AuditTarget struct {
	BaseURL string `json:"base_url"`
	Scanned int    `json:"scanned"`
}

// CategoryScores are the per-category scores shown in a summary.
type CategoryScores struct {
	Meta      int `json:"meta"`
	Content   int `json:"content"`
	Technical int `json:"technical"`
}

// Summary is the executive summary of a report.
type Summary struct {
	HealthStatus       HealthStatus   `json:"health_status"`
	OverallScore       int            `json:"overall_score"`
	TotalIssues        int            `json:"total_issues"`
	CriticalIssueCount int            `json:"critical_issue_count"`
	Text               string         `json:"text"`
	TopStrengths       []string       `json:"top_strengths"`
	TopWeaknesses      []string       `json:"top_weaknesses"`
	CategoryScores     CategoryScores `json:"category_scores"`
}

// PrioritizedRecommendation is a report-level action item.
type PrioritizedRecommendation struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Impact        Impact   `json:"impact"`
	Category      Category `json:"category"`
	AffectedPages int      `json:"affected_pages"`
	Examples      []string `json:"examples"`
}

// ImpactCounts tallies issues by impact.
type ImpactCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

// Add counts one issue of the given impact.
func (c *ImpactCounts) Add(impact Impact) {
	switch impact {
	case ImpactHigh:
		c.High++
	case ImpactMedium:
		c.Medium++
	default:
		c.Low++
	}
	c.Total++
}

// IssueBreakdown tallies issues by category and impact.
type IssueBreakdown struct {
	ByCategory       map[Category]ImpactCounts `json:"by_category"`
	ByImpact         ImpactCounts              `json:"by_impact"`
	MostCommonIssues []IssueCount              `json:"most_common_issues"`
}

// PageDetail is one row of the per-page report table.
type PageDetail struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	Score      int     `json:"score"`
	Scores     *Scores `json:"scores,omitempty"`
	IssueCount int     `json:"issue_count"`
	TopIssues  []Issue `json:"top_issues,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// ReportDetails is the optional deep-dive section of a report.
type ReportDetails struct {
	IssueBreakdown IssueBreakdown `json:"issue_breakdown"`
	PageDetails    []PageDetail   `json:"page_details"`
}

// ReportType is the fixed type tag of generated reports.
const ReportType = "seo_audit"

// Report is the final artifact of a site audit.
type Report struct {
	ID                         string                      `json:"id"`
	Type                       string                      `json:"type"`
	Timestamp                  time.Time                   `json:"timestamp"`
	AuditTarget                AuditTarget                 `json:"audit_target"`
	Summary                    Summary                     `json:"summary"`
	Scores                     Scores                      `json:"scores"`
	PrioritizedRecommendations []PrioritizedRecommendation `json:"prioritized_recommendations"`
	Details                    *ReportDetails              `json:"details,omitempty"`
	Pages                      map[string]PageOutcome      `json:"pages"`
}

// ReportEntry is the index row written for every completed job.
type ReportEntry struct {
	JobID        string
	JobType      JobType
	URL          string
	OverallScore int
	TotalIssues  int
	HealthStatus HealthStatus
	BlobURI      string
	Digest       string
	Completed    time.Time
}
