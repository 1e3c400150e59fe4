package audit

import "time"

// JobType selects the pipeline a job runs through.
type JobType string

// Supported job types.
const (
	JobTypeSiteAudit JobType = "site_audit"
	JobTypePageAudit JobType = "page_audit"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	return t == JobTypeSiteAudit || t == JobTypePageAudit
}

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

// Job status values persisted in the store.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AllJobStatuses lists statuses in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
}

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Options are the per-job crawl and report knobs supplied by the submitter.
// Zero values fall back to the worker's configured defaults.
type Options struct {
	MaxPages        int    `json:"max_pages,omitempty"`
	MaxDepth        *int   `json:"max_depth,omitempty"`
	TimeoutMs       int    `json:"timeout_ms,omitempty"`
	UserAgent       string `json:"user_agent,omitempty"`
	FollowRedirects *bool  `json:"follow_redirects,omitempty"`
	IgnoreRobotsTxt bool   `json:"ignore_robots_txt,omitempty"`
	IncludeDetails  *bool  `json:"include_details,omitempty"`
	Headless        bool   `json:"headless,omitempty"`
}

// JobParams captures what the submitter asked for.
type JobParams struct {
	URL     string  `json:"url"`
	Options Options `json:"options"`
}

// JobError is the user-visible failure payload of a failed job.
type JobError struct {
	Message string `json:"message"`
}

// ResultStats summarizes a finished audit.
type ResultStats struct {
	PagesScanned      int       `json:"pages_scanned"`
	CrawlDurationMs   int64     `json:"crawl_duration_ms"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
}

// JobResults holds the output of a completed job. Site audits carry a
// Report, page audits an Analysis.
type JobResults struct {
	Report   *Report       `json:"report,omitempty"`
	Analysis *PageAnalysis `json:"analysis,omitempty"`
	Stats    ResultStats   `json:"stats"`
}

// Job represents one audit request persisted in the KV store.
type Job struct {
	ID        string      `json:"id"`
	Type      JobType     `json:"type"`
	Status    JobStatus   `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
	Params    JobParams   `json:"params"`
	Results   *JobResults `json:"results,omitempty"`
	Created   time.Time   `json:"created"`
	Updated   time.Time   `json:"updated"`
	Started   *time.Time  `json:"started,omitempty"`
	Completed *time.Time  `json:"completed,omitempty"`
	Error     *JobError   `json:"error,omitempty"`
}

// JobSpec is the submitter-provided input to job creation.
type JobSpec struct {
	ID     string
	Type   JobType
	Params JobParams
}

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status    *JobStatus
	Progress  *int
	Message   *string
	Results   *JobResults
	Started   *time.Time
	Completed *time.Time
	Error     *JobError
}

// Apply merges the non-nil fields of p into job.
func (p JobPatch) Apply(job *Job) {
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Progress != nil {
		job.Progress = *p.Progress
	}
	if p.Message != nil {
		job.Message = *p.Message
	}
	if p.Results != nil {
		job.Results = p.Results
	}
	if p.Started != nil {
		started := *p.Started
		job.Started = &started
	}
	if p.Completed != nil {
		completed := *p.Completed
		job.Completed = &completed
	}
	if p.Error != nil {
		jobErr := *p.Error
		job.Error = &jobErr
	}
}

// QueueStats reports list lengths and job counts by status.
type QueueStats struct {
	Queue     QueueDepth `json:"queue"`
	Jobs      JobCounts  `json:"jobs"`
	TotalJobs int        `json:"total_jobs"`
}

// QueueDepth holds waiting/processing list lengths.
type QueueDepth struct {
	Waiting    int64 `json:"waiting"`
	Processing int64 `json:"processing"`
	Total      int64 `json:"total"`
}

// JobCounts holds per-status job counts.
type JobCounts struct {
	ByStatus map[JobStatus]int `json:"by_status"`
}
