// Package worker polls the job queue and runs audit jobs end to end.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/crawler"
	"github.com/JakeFAU/seo-audit/internal/logging"
	"github.com/JakeFAU/seo-audit/internal/metrics"
	"github.com/JakeFAU/seo-audit/internal/report"
)

// Defaults applied to a zero Config.
const (
	DefaultBatchSize    = 5
	DefaultPollInterval = 10 * time.Second
	DefaultJobTimeout   = 10 * time.Minute
)

// Config controls Worker behavior.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
	// Crawl is the policy used for fields a job leaves unset.
	Crawl crawler.Policy
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.Crawl == (crawler.Policy{}) {
		c.Crawl = crawler.DefaultPolicy()
	}
	return c
}

// Queue is the subset of queue.JobQueue the worker drives.
type Queue interface {
	GetNextBatch(ctx context.Context, n int) ([]string, error)
	GetJob(ctx context.Context, id string) (*audit.Job, error)
	UpdateJob(ctx context.Context, id string, patch audit.JobPatch) (audit.Job, error)
	CompleteJob(ctx context.Context, id string, results audit.JobResults) (audit.Job, error)
	FailJob(ctx context.Context, id string, cause error) (audit.Job, error)
	RemoveFromProcessing(ctx context.Context, id string) error
}

// Crawler fetches the pages of one audit.
type Crawler interface {
	Crawl(ctx context.Context, seed string, policy crawler.Policy) (crawler.Result, error)
}

// Reporter analyzes crawled pages and renders reports.
type Reporter interface {
	AnalyzePage(ctx context.Context, page audit.PageRecord) audit.PageAnalysis
	AnalyzeSite(ctx context.Context, crawl crawler.Result) (audit.SiteAnalysis, error)
	Generate(site audit.SiteAnalysis, opts report.GenerateOptions) (audit.Report, error)
}

type namedSink struct {
	name string
	sink audit.ResultSink
}

// Option customizes a Worker.
type Option func(*Worker)

// WithSink registers a sink that receives every completed job.
func WithSink(name string, sink audit.ResultSink) Option {
	return func(w *Worker) {
		w.sinks = append(w.sinks, namedSink{name: name, sink: sink})
	}
}

// Worker claims queued jobs and runs them with bounded concurrency.
type Worker struct {
	queue    Queue
	crawler  Crawler
	reporter Reporter
	sinks    []namedSink
	clock    audit.Clock
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	jobs     sync.WaitGroup

	startOnce sync.Once
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
}

// New constructs a Worker.
func New(
	queue Queue,
	crawler Crawler,
	reporter Reporter,
	clock audit.Clock,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		queue:    queue,
		crawler:  crawler,
		reporter: reporter,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling loop. It polls immediately and then once per
// PollInterval until Stop is called or ctx ends. Jobs run under ctx, not
// under the loop, so Stop lets them finish.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		w.stopLoop = cancel
		w.loopDone = make(chan struct{})
		go w.loop(ctx, loopCtx)
		w.logger.Info("worker started",
			zap.Int("batch_size", w.cfg.BatchSize),
			zap.Duration("poll_interval", w.cfg.PollInterval),
			zap.Duration("job_timeout", w.cfg.JobTimeout))
	})
}

// Stop halts polling and waits for in-flight jobs to settle or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	if w.stopLoop == nil {
		return nil
	}
	w.stopLoop()
	select {
	case <-w.loopDone:
	case <-ctx.Done():
		return fmt.Errorf("stop worker: %w", ctx.Err())
	}

	settled := make(chan struct{})
	go func() {
		w.jobs.Wait()
		close(settled)
	}()
	select {
	case <-settled:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop worker: %w", ctx.Err())
	}
}

// InFlight returns the number of jobs currently being supervised.
func (w *Worker) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inFlight)
}

func (w *Worker) loop(jobCtx, loopCtx context.Context) {
	defer close(w.loopDone)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		w.poll(jobCtx)
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll claims as many jobs as there are free slots and launches them.
func (w *Worker) poll(ctx context.Context) {
	slots := w.cfg.BatchSize - w.InFlight()
	if slots <= 0 {
		w.logger.Debug("no free slots", zap.Int("in_flight", w.InFlight()))
		return
	}
	ids, err := w.queue.GetNextBatch(ctx, slots)
	if err != nil {
		// Ids claimed before the failure still run.
		w.logger.Error("claim jobs failed", zap.Error(err), zap.Int("claimed", len(ids)))
	}
	for _, id := range ids {
		w.launch(ctx, id)
	}
}

func (w *Worker) launch(ctx context.Context, id string) {
	w.mu.Lock()
	if _, running := w.inFlight[id]; running {
		w.mu.Unlock()
		w.logger.Warn("job already in flight", zap.String("job_id", id))
		return
	}
	w.inFlight[id] = struct{}{}
	w.mu.Unlock()

	w.jobs.Add(1)
	metrics.IncActiveJobs()
	go func() {
		defer w.jobs.Done()
		defer metrics.DecActiveJobs()
		defer w.release(id)
		w.supervise(ctx, id)
	}()
}

func (w *Worker) release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}

// jobRun tracks one job execution. Exactly one terminal write happens per
// run, whichever of completion, failure or timeout gets there first.
type jobRun struct {
	id      string
	jobType audit.JobType
	started time.Time
	once    sync.Once
	settled atomic.Bool
}

func (r *jobRun) settle(fn func()) bool {
	ran := false
	r.once.Do(func() {
		r.settled.Store(true)
		ran = true
		fn()
	})
	return ran
}

// supervise runs the job under JobTimeout and fails it on error or
// deadline. The job goroutine observes the canceled context and stops.
func (w *Worker) supervise(parent context.Context, id string) {
	ctx, cancel := context.WithTimeout(parent, w.cfg.JobTimeout)
	defer cancel()

	run := &jobRun{id: id, started: w.clock.Now()}
	done := make(chan error, 1)
	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		done <- w.process(ctx, run)
	}()

	select {
	case err := <-done:
		if err != nil {
			w.fail(ctx, run, err)
		}
	case <-ctx.Done():
		cause := ctx.Err()
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w after %s", audit.ErrJobTimeout, w.cfg.JobTimeout)
		}
		w.fail(ctx, run, cause)
	}
}

func (w *Worker) process(ctx context.Context, run *jobRun) error {
	job, err := w.queue.GetJob(ctx, run.id)
	if err != nil {
		return err
	}
	if job == nil {
		w.logger.Warn("claimed job not found",
			zap.String("job_id", run.id),
			zap.Error(audit.ErrNotFound))
		run.settle(func() { w.removeFromProcessing(ctx, run.id) })
		return nil
	}
	run.jobType = job.Type

	status := audit.JobStatusProcessing
	started := w.clock.Now().UTC()
	message := "Processing"
	progress := 0
	if _, err := w.queue.UpdateJob(ctx, run.id, audit.JobPatch{
		Status:   &status,
		Progress: &progress,
		Message:  &message,
		Started:  &started,
	}); err != nil {
		return err
	}
	w.logger.Info("job started", logging.JobFields(*job)...)

	var results audit.JobResults
	switch job.Type {
	case audit.JobTypeSiteAudit:
		results, err = w.runSiteAudit(ctx, run, *job)
	case audit.JobTypePageAudit:
		results, err = w.runPageAudit(ctx, run, *job)
	default:
		err = fmt.Errorf("%w: %q", audit.ErrUnknownJobType, job.Type)
	}
	if err != nil {
		return err
	}
	w.complete(ctx, run, results)
	return nil
}

func (w *Worker) runSiteAudit(ctx context.Context, run *jobRun, job audit.Job) (audit.JobResults, error) {
	policy := w.policyFor(job.Params.Options)

	w.progress(ctx, run, 10, "Crawling site")
	crawl, err := w.crawler.Crawl(ctx, job.Params.URL, policy)
	if err != nil {
		return audit.JobResults{}, fmt.Errorf("crawl: %w", err)
	}

	w.progress(ctx, run, 40, "Analyzing pages")
	site, err := w.reporter.AnalyzeSite(ctx, crawl)
	if err != nil {
		return audit.JobResults{}, err
	}

	w.progress(ctx, run, 80, "Generating report")
	rep, err := w.reporter.Generate(site, report.GenerateOptions{
		IncludeDetails: includeDetails(job.Params.Options),
	})
	if err != nil {
		return audit.JobResults{}, fmt.Errorf("generate report: %w", err)
	}

	return audit.JobResults{
		Report: &rep,
		Stats: audit.ResultStats{
			PagesScanned:      crawl.PagesVisited,
			CrawlDurationMs:   crawl.Duration.Milliseconds(),
			AnalysisTimestamp: site.Timestamp,
		},
	}, nil
}

func (w *Worker) runPageAudit(ctx context.Context, run *jobRun, job audit.Job) (audit.JobResults, error) {
	policy := w.policyFor(job.Params.Options)
	policy.MaxPages = 1
	policy.MaxDepth = 0

	w.progress(ctx, run, 10, "Fetching page")
	crawl, err := w.crawler.Crawl(ctx, job.Params.URL, policy)
	if err != nil {
		return audit.JobResults{}, fmt.Errorf("crawl: %w", err)
	}
	page, ok := firstPage(crawl.Pages)
	if !ok {
		return audit.JobResults{}, errors.New("no page data")
	}

	w.progress(ctx, run, 50, "Analyzing page")
	analysis := w.reporter.AnalyzePage(ctx, page)
	if err := ctx.Err(); err != nil {
		return audit.JobResults{}, err
	}

	w.progress(ctx, run, 80, "Finalizing results")
	return audit.JobResults{
		Analysis: &analysis,
		Stats: audit.ResultStats{
			PagesScanned:      crawl.PagesVisited,
			CrawlDurationMs:   crawl.Duration.Milliseconds(),
			AnalysisTimestamp: analysis.Timestamp,
		},
	}, nil
}

// progress records a milestone. Failures are logged; progress is advisory.
func (w *Worker) progress(ctx context.Context, run *jobRun, pct int, message string) {
	if run.settled.Load() {
		return
	}
	if _, err := w.queue.UpdateJob(ctx, run.id, audit.JobPatch{Progress: &pct, Message: &message}); err != nil {
		w.logger.Warn("progress update failed",
			zap.String("job_id", run.id),
			zap.Int("progress", pct),
			zap.Error(err))
	}
}

func (w *Worker) complete(ctx context.Context, run *jobRun, results audit.JobResults) {
	// Terminal writes outlive the job deadline.
	writeCtx := context.WithoutCancel(ctx)
	run.settle(func() {
		job, err := w.queue.CompleteJob(writeCtx, run.id, results)
		if err != nil {
			w.markFailed(writeCtx, run, fmt.Errorf("complete job: %w", err))
			return
		}
		w.removeFromProcessing(writeCtx, run.id)
		w.observe(run, audit.JobStatusCompleted)
		w.logger.Info("job completed",
			zap.String("job_id", run.id),
			zap.String("type", string(run.jobType)),
			zap.Int("pages_scanned", results.Stats.PagesScanned))
		w.notify(writeCtx, job)
	})
}

func (w *Worker) fail(ctx context.Context, run *jobRun, cause error) {
	writeCtx := context.WithoutCancel(ctx)
	run.settle(func() {
		w.markFailed(writeCtx, run, cause)
	})
}

// markFailed writes the failed state and releases the processing slot. It
// runs inside a settle closure.
func (w *Worker) markFailed(ctx context.Context, run *jobRun, cause error) {
	w.logger.Error("job failed", zap.String("job_id", run.id), zap.Error(cause))
	if _, err := w.queue.FailJob(ctx, run.id, cause); err != nil {
		w.logger.Error("fail job write failed", zap.String("job_id", run.id), zap.Error(err))
	}
	w.removeFromProcessing(ctx, run.id)
	w.observe(run, audit.JobStatusFailed)
}

func (w *Worker) removeFromProcessing(ctx context.Context, id string) {
	if err := w.queue.RemoveFromProcessing(ctx, id); err != nil {
		w.logger.Error("remove from processing failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (w *Worker) observe(run *jobRun, status audit.JobStatus) {
	jobType := string(run.jobType)
	if jobType == "" {
		jobType = "unknown"
	}
	metrics.ObserveJob(jobType, string(status), w.clock.Now().Sub(run.started))
}

// notify hands a completed job to every sink. Sink errors never change the
// job outcome.
func (w *Worker) notify(ctx context.Context, job audit.Job) {
	for _, s := range w.sinks {
		if err := s.sink.Store(ctx, job); err != nil {
			metrics.ObserveSinkFailure(s.name)
			w.logger.Error("result sink failed",
				zap.String("job_id", job.ID),
				zap.String("sink", s.name),
				zap.Error(err))
		}
	}
}

// policyFor maps submitter options onto the configured crawl policy.
func (w *Worker) policyFor(opts audit.Options) crawler.Policy {
	policy := w.cfg.Crawl
	if opts.MaxPages > 0 {
		policy.MaxPages = opts.MaxPages
	}
	if opts.MaxDepth != nil {
		policy.MaxDepth = *opts.MaxDepth
	}
	if opts.TimeoutMs > 0 {
		policy.Timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}
	if opts.UserAgent != "" {
		policy.UserAgent = opts.UserAgent
	}
	if opts.FollowRedirects != nil {
		policy.FollowRedirects = *opts.FollowRedirects
	}
	policy.IgnoreRobotsTxt = policy.IgnoreRobotsTxt || opts.IgnoreRobotsTxt
	policy.AllowHeadless = policy.AllowHeadless || opts.Headless
	return policy
}

func includeDetails(opts audit.Options) bool {
	return opts.IncludeDetails == nil || *opts.IncludeDetails
}

func firstPage(pages map[string]audit.PageRecord) (audit.PageRecord, bool) {
	if len(pages) == 0 {
		return audit.PageRecord{}, false
	}
	ordered := make([]audit.PageRecord, 0, len(pages))
	for _, p := range pages {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })
	return ordered[0], true
}
