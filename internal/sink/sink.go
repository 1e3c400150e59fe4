// Package sink hands completed jobs to the archive, the report index and
// the notification topic.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/metrics"
	"github.com/JakeFAU/seo-audit/internal/report"
)

// DefaultPrefix is the archive path prefix used when none is configured.
const DefaultPrefix = "reports"

const artifactName = "report.json"

// Config controls where artifacts and events go.
type Config struct {
	Prefix string
	Topic  string
}

// Event is the payload published for every completed job.
type Event struct {
	JobID        string             `json:"job_id"`
	Type         audit.JobType      `json:"type"`
	Status       audit.JobStatus    `json:"status"`
	URL          string             `json:"url"`
	OverallScore int                `json:"overall_score"`
	HealthStatus audit.HealthStatus `json:"health_status"`
	BlobURI      string             `json:"blob_uri,omitempty"`
	Completed    time.Time          `json:"completed"`
}

// Recorder implements audit.ResultSink. Each stage is optional; a failing
// stage does not stop the later ones.
type Recorder struct {
	cfg       Config
	blobs     audit.BlobStore
	hasher    audit.Hasher
	index     audit.ReportIndex
	publisher audit.Publisher
	clock     audit.Clock
	logger    *zap.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithArchive writes the job's report or analysis JSON to blobs.
func WithArchive(blobs audit.BlobStore, hasher audit.Hasher) Option {
	return func(r *Recorder) {
		r.blobs = blobs
		r.hasher = hasher
	}
}

// WithIndex records a summary row per job.
func WithIndex(index audit.ReportIndex) Option {
	return func(r *Recorder) {
		r.index = index
	}
}

// WithPublisher announces completed jobs on cfg.Topic.
func WithPublisher(publisher audit.Publisher) Option {
	return func(r *Recorder) {
		r.publisher = publisher
	}
}

// New builds a Recorder.
func New(cfg Config, clock audit.Clock, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.Trim(cfg.Prefix, "/") == "" {
		cfg.Prefix = DefaultPrefix
	}
	r := &Recorder{cfg: cfg, clock: clock, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ArtifactPath returns where the artifact of jobID is archived.
func (r *Recorder) ArtifactPath(jobID string) string {
	return path.Join(strings.Trim(r.cfg.Prefix, "/"), jobID, artifactName)
}

// Store archives, indexes and announces job.
func (r *Recorder) Store(ctx context.Context, job audit.Job) error {
	if job.Results == nil {
		return fmt.Errorf("job %s has no results", job.ID)
	}
	artifact, err := encodeArtifact(*job.Results)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	var errs []error
	stageFailed := func(stage string, err error) {
		metrics.ObserveSinkFailure(stage)
		r.logger.Warn("result sink stage failed",
			zap.String("job_id", job.ID),
			zap.String("stage", stage),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", stage, err))
	}

	var uri, digest string
	if r.blobs != nil {
		uri, digest, err = r.archive(ctx, job.ID, artifact)
		if err != nil {
			stageFailed("archive", err)
		}
	}

	score, issues, health := summarize(*job.Results)
	completed := r.clock.Now().UTC()
	if job.Completed != nil {
		completed = job.Completed.UTC()
	}

	if r.index != nil {
		entry := audit.ReportEntry{
			JobID:        job.ID,
			JobType:      job.Type,
			URL:          job.Params.URL,
			OverallScore: score,
			TotalIssues:  issues,
			HealthStatus: health,
			BlobURI:      uri,
			Digest:       digest,
			Completed:    completed,
		}
		if err := r.index.IndexReport(ctx, entry); err != nil {
			stageFailed("index", err)
		}
	}

	if r.publisher != nil && r.cfg.Topic != "" {
		event := Event{
			JobID:        job.ID,
			Type:         job.Type,
			Status:       job.Status,
			URL:          job.Params.URL,
			OverallScore: score,
			HealthStatus: health,
			BlobURI:      uri,
			Completed:    completed,
		}
		if _, err := r.publisher.Publish(ctx, r.cfg.Topic, event); err != nil {
			stageFailed("notify", err)
		}
	}

	if len(errs) == 0 {
		r.logger.Debug("job results recorded", zap.String("job_id", job.ID), zap.String("blob_uri", uri))
	}
	return errors.Join(errs...)
}

func (r *Recorder) archive(ctx context.Context, jobID string, artifact []byte) (string, string, error) {
	var digest string
	if r.hasher != nil {
		sum, err := r.hasher.Hash(artifact)
		if err != nil {
			return "", "", fmt.Errorf("hash artifact: %w", err)
		}
		digest = sum
	}
	uri, err := r.blobs.PutObject(ctx, r.ArtifactPath(jobID), "application/json", artifact)
	if err != nil {
		return "", digest, fmt.Errorf("put object: %w", err)
	}
	return uri, digest, nil
}

// encodeArtifact picks the report of a site audit or the analysis of a
// page audit.
func encodeArtifact(results audit.JobResults) ([]byte, error) {
	var payload any
	switch {
	case results.Report != nil:
		payload = results.Report
	case results.Analysis != nil:
		payload = results.Analysis
	default:
		return nil, errors.New("results carry neither report nor analysis")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func summarize(results audit.JobResults) (score, issues int, health audit.HealthStatus) {
	if rep := results.Report; rep != nil {
		return rep.Scores.Overall, rep.Summary.TotalIssues, rep.Summary.HealthStatus
	}
	if a := results.Analysis; a != nil {
		return a.Scores.Overall, a.IssueCount, report.HealthFor(a.Scores.Overall)
	}
	return 0, 0, report.HealthFor(0)
}
