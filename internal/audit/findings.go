package audit

// Category names one of the three analyzers.
type Category string

// Analyzer categories, in reporting order.
const (
	CategoryMeta      Category = "meta"
	CategoryContent   Category = "content"
	CategoryTechnical Category = "technical"
)

// Categories lists every analyzer category in reporting order.
var Categories = []Category{CategoryMeta, CategoryContent, CategoryTechnical}

// Impact ranks how much an issue matters.
type Impact string

// Impact levels.
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Rank orders impacts with high first.
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 0
	case ImpactMedium:
		return 1
	default:
		return 2
	}
}

// Issue is one rubric violation found on a page.
type Issue struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Impact   Impact         `json:"impact"`
	Category Category       `json:"category"`
	Details  map[string]any `json:"details,omitempty"`
}

// Recommendation is the remediation paired with an Issue.
type Recommendation struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Impact   Impact   `json:"impact"`
	Category Category `json:"category"`
	Details  string   `json:"details,omitempty"`
}

// AnalyzerResult is the output of one analyzer for one page.
type AnalyzerResult struct {
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
	Score           int              `json:"score"`
	MaxScore        int              `json:"max_score"`
	Percentage      int              `json:"percentage"`
}

// Scores are 0-100 percentages per category plus the overall score.
type Scores struct {
	Overall   int `json:"overall"`
	Meta      int `json:"meta"`
	Content   int `json:"content"`
	Technical int `json:"technical"`
}

// Get returns the score for a category.
func (s Scores) Get(c Category) int {
	switch c {
	case CategoryMeta:
		return s.Meta
	case CategoryContent:
		return s.Content
	case CategoryTechnical:
		return s.Technical
	default:
		return 0
	}
}

// Set assigns the score for a category.
func (s *Scores) Set(c Category, v int) {
	switch c {
	case CategoryMeta:
		s.Meta = v
	case CategoryContent:
		s.Content = v
	case CategoryTechnical:
		s.Technical = v
	}
}
