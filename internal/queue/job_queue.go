// Package queue implements the audit job lifecycle on top of a kv.Store.
//
// Jobs live under job:<id>. Waiting ids sit in audit:queue in creation
// order and move to audit:processing when a worker claims them. Every
// operation is a sequence of single-key store calls; no cross-key
// transaction is assumed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/kv"
)

// Store keys.
const (
	JobKeyPrefix  = "job:"
	WaitingKey    = "audit:queue"
	ProcessingKey = "audit:processing"
)

// JobKey returns the store key of a job record.
func JobKey(id string) string {
	return JobKeyPrefix + id
}

// JobQueue creates, claims and finalizes audit jobs.
type JobQueue struct {
	store  kv.Store
	clock  audit.Clock
	ids    audit.IDGenerator
	logger *zap.Logger

	// processingMu serializes rewrites of the processing list with pushes
	// onto it from GetNextBatch within this process.
	processingMu sync.Mutex
}

// New constructs a JobQueue.
func New(store kv.Store, clock audit.Clock, ids audit.IDGenerator, logger *zap.Logger) *JobQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobQueue{
		store:  store,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// CreateJob stores a new queued job and appends its id to the waiting list.
// The record is written before the id is queued so a consumer never sees
// an id without its record.
func (q *JobQueue) CreateJob(ctx context.Context, spec audit.JobSpec) (string, error) {
	if !spec.Type.Valid() {
		return "", fmt.Errorf("%w: %q", audit.ErrUnknownJobType, spec.Type)
	}
	id := spec.ID
	if id == "" {
		generated, err := q.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("generate job id: %w", err)
		}
		id = generated
	}
	now := q.clock.Now().UTC()
	job := audit.Job{
		ID:       id,
		Type:     spec.Type,
		Status:   audit.JobStatusQueued,
		Progress: 0,
		Message:  "Queued",
		Params:   spec.Params,
		Created:  now,
		Updated:  now,
	}
	if err := q.writeJob(ctx, job); err != nil {
		return "", err
	}
	if _, err := q.store.PushEnd(ctx, WaitingKey, id); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", id, err)
	}
	q.logger.Debug("job created", zap.String("job_id", id), zap.String("type", string(spec.Type)))
	return id, nil
}

// GetJob returns the job or nil when no record exists.
func (q *JobQueue) GetJob(ctx context.Context, id string) (*audit.Job, error) {
	raw, found, err := q.store.Get(ctx, JobKey(id))
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	var job audit.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateJob merges patch into the stored job and bumps Updated.
func (q *JobQueue) UpdateJob(ctx context.Context, id string, patch audit.JobPatch) (audit.Job, error) {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return audit.Job{}, err
	}
	if job == nil {
		return audit.Job{}, fmt.Errorf("job %s: %w", id, audit.ErrNotFound)
	}
	patch.Apply(job)
	job.Updated = q.clock.Now().UTC()
	if err := q.writeJob(ctx, *job); err != nil {
		return audit.Job{}, err
	}
	return *job, nil
}

// CompleteJob marks the job completed with its results.
func (q *JobQueue) CompleteJob(ctx context.Context, id string, results audit.JobResults) (audit.Job, error) {
	now := q.clock.Now().UTC()
	status := audit.JobStatusCompleted
	progress := 100
	message := "Audit completed"
	return q.UpdateJob(ctx, id, audit.JobPatch{
		Status:    &status,
		Progress:  &progress,
		Message:   &message,
		Results:   &results,
		Completed: &now,
	})
}

// FailJob marks the job failed, keeping its last progress value.
func (q *JobQueue) FailJob(ctx context.Context, id string, cause error) (audit.Job, error) {
	now := q.clock.Now().UTC()
	status := audit.JobStatusFailed
	message := "Audit failed"
	text := "unknown error"
	if cause != nil {
		text = cause.Error()
	}
	return q.UpdateJob(ctx, id, audit.JobPatch{
		Status:    &status,
		Message:   &message,
		Error:     &audit.JobError{Message: text},
		Completed: &now,
	})
}

// GetNextBatch claims up to n waiting jobs in FIFO order. Each id is moved
// onto the processing list before its status flips. An empty waiting list
// yields an empty batch.
func (q *JobQueue) GetNextBatch(ctx context.Context, n int) ([]string, error) {
	ids := make([]string, 0, max(n, 0))
	for len(ids) < n {
		popped, err := q.store.PopStart(ctx, WaitingKey, 1)
		if err != nil {
			return ids, fmt.Errorf("dequeue: %w", err)
		}
		if len(popped) == 0 {
			break
		}
		id := popped[0]
		if err := q.pushProcessing(ctx, id); err != nil {
			if _, requeueErr := q.store.PushStart(ctx, WaitingKey, id); requeueErr != nil {
				q.logger.Error("requeue after claim failure", zap.String("job_id", id), zap.Error(requeueErr))
			}
			return ids, err
		}
		ids = append(ids, id)

		status := audit.JobStatusProcessing
		message := "Claimed by worker"
		if _, err := q.UpdateJob(ctx, id, audit.JobPatch{Status: &status, Message: &message}); err != nil {
			if errors.Is(err, audit.ErrNotFound) {
				// Left on the processing list; the worker reports it.
				q.logger.Warn("claimed job has no record", zap.String("job_id", id))
				continue
			}
			return ids, err
		}
	}
	return ids, nil
}

// RemoveFromProcessing drops id from the processing list by rewriting the
// list without it.
func (q *JobQueue) RemoveFromProcessing(ctx context.Context, id string) error {
	q.processingMu.Lock()
	defer q.processingMu.Unlock()

	current, err := q.store.Range(ctx, ProcessingKey, 0, -1)
	if err != nil {
		return fmt.Errorf("read processing list: %w", err)
	}
	kept := make([]string, 0, len(current))
	for _, existing := range current {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(current) {
		return nil
	}
	if _, err := q.store.Delete(ctx, ProcessingKey); err != nil {
		return fmt.Errorf("clear processing list: %w", err)
	}
	if len(kept) == 0 {
		return nil
	}
	if _, err := q.store.PushEnd(ctx, ProcessingKey, kept...); err != nil {
		return fmt.Errorf("rebuild processing list: %w", err)
	}
	return nil
}

// Processing returns the ids currently on the processing list.
func (q *JobQueue) Processing(ctx context.Context) ([]string, error) {
	ids, err := q.store.Range(ctx, ProcessingKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read processing list: %w", err)
	}
	return ids, nil
}

// Waiting returns the ids currently on the waiting list, head first.
func (q *JobQueue) Waiting(ctx context.Context) ([]string, error) {
	ids, err := q.store.Range(ctx, WaitingKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read waiting list: %w", err)
	}
	return ids, nil
}

// Stats reports list lengths and per-status job counts. Counting statuses
// scans every job key, so this is meant for monitoring, not hot paths.
func (q *JobQueue) Stats(ctx context.Context) (audit.QueueStats, error) {
	waiting, err := q.store.Length(ctx, WaitingKey)
	if err != nil {
		return audit.QueueStats{}, fmt.Errorf("waiting length: %w", err)
	}
	processing, err := q.store.Length(ctx, ProcessingKey)
	if err != nil {
		return audit.QueueStats{}, fmt.Errorf("processing length: %w", err)
	}
	keys, err := q.store.ScanKeys(ctx, JobKeyPrefix+"*")
	if err != nil {
		return audit.QueueStats{}, fmt.Errorf("scan jobs: %w", err)
	}
	byStatus := make(map[audit.JobStatus]int, len(audit.AllJobStatuses))
	for _, status := range audit.AllJobStatuses {
		byStatus[status] = 0
	}
	for _, key := range keys {
		job, err := q.GetJob(ctx, key[len(JobKeyPrefix):])
		if err != nil {
			q.logger.Warn("skipping unreadable job", zap.String("key", key), zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		byStatus[job.Status]++
	}
	return audit.QueueStats{
		Queue: audit.QueueDepth{
			Waiting:    waiting,
			Processing: processing,
			Total:      waiting + processing,
		},
		Jobs:      audit.JobCounts{ByStatus: byStatus},
		TotalJobs: len(keys),
	}, nil
}

func (q *JobQueue) pushProcessing(ctx context.Context, id string) error {
	q.processingMu.Lock()
	defer q.processingMu.Unlock()
	if _, err := q.store.PushEnd(ctx, ProcessingKey, id); err != nil {
		return fmt.Errorf("mark job %s processing: %w", id, err)
	}
	return nil
}

func (q *JobQueue) writeJob(ctx context.Context, job audit.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := q.store.Set(ctx, JobKey(job.ID), raw); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}
