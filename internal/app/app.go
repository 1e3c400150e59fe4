// Package app builds the long-lived services from configuration and runs
// them: the HTTP API, the job worker, or a one-shot inline audit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-audit/internal/analyzer"
	"github.com/JakeFAU/seo-audit/internal/api"
	"github.com/JakeFAU/seo-audit/internal/audit"
	"github.com/JakeFAU/seo-audit/internal/clock/system"
	"github.com/JakeFAU/seo-audit/internal/config"
	"github.com/JakeFAU/seo-audit/internal/crawler"
	collyfetcher "github.com/JakeFAU/seo-audit/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/seo-audit/internal/fetcher/headless"
	"github.com/JakeFAU/seo-audit/internal/hash/sha256"
	"github.com/JakeFAU/seo-audit/internal/headless/detector"
	"github.com/JakeFAU/seo-audit/internal/id/uuid"
	"github.com/JakeFAU/seo-audit/internal/kv"
	memorykv "github.com/JakeFAU/seo-audit/internal/kv/memory"
	rediskv "github.com/JakeFAU/seo-audit/internal/kv/redis"
	"github.com/JakeFAU/seo-audit/internal/metrics"
	"github.com/JakeFAU/seo-audit/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/seo-audit/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/seo-audit/internal/publisher/pubsub"
	"github.com/JakeFAU/seo-audit/internal/queue"
	"github.com/JakeFAU/seo-audit/internal/report"
	"github.com/JakeFAU/seo-audit/internal/sink"
	gcsstorage "github.com/JakeFAU/seo-audit/internal/storage/gcs"
	localstorage "github.com/JakeFAU/seo-audit/internal/storage/local"
	memorystorage "github.com/JakeFAU/seo-audit/internal/storage/memory"
	pgstore "github.com/JakeFAU/seo-audit/internal/storage/postgres"
	"github.com/JakeFAU/seo-audit/internal/worker"
)

const (
	shutdownTimeout  = 10 * time.Second
	auditPollEvery   = 100 * time.Millisecond
	readyCheckBudget = 2 * time.Second
)

// App holds the services built from one Config. An App runs at most one
// of Serve, RunWorker or Audit.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  audit.Clock

	store    kv.Store
	queue    *queue.JobQueue
	worker   *worker.Worker
	api      *api.Server
	headless *headlessfetcher.Fetcher

	blobs     audit.BlobStore
	gcs       *gcsstorage.BlobStore
	index     *pgstore.ReportIndex
	publisher audit.Publisher
	pubsub    *gcppublisher.Publisher
}

// Build creates every dependency named by cfg. Failures close whatever was
// already opened.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger, clock: system.New()}
	built := false
	defer func() {
		if built {
			return
		}
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("partial build cleanup failed", zap.Error(err))
		}
	}()

	app.logger.Info("building application dependencies")
	store, err := setupStore(ctx, app)
	if err != nil {
		return nil, err
	}
	app.store = store
	app.queue = queue.New(app.store, app.clock, uuid.New(), logger.Named("queue"))

	recorder, err := setupSinks(ctx, app)
	if err != nil {
		return nil, err
	}

	auditCrawler := setupCrawler(app)
	reporter := report.New(
		analyzer.NewSet(logger.Named("analyzer")),
		report.Options{Parallelism: cfg.Report.Parallelism},
		uuid.NewPrefixed("report"),
		app.clock,
		logger.Named("report"),
	)

	var workerOpts []worker.Option
	if recorder != nil {
		workerOpts = append(workerOpts, worker.WithSink("recorder", recorder))
	}
	app.worker = worker.New(
		app.queue,
		auditCrawler,
		reporter,
		app.clock,
		worker.Config{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.PollInterval(),
			JobTimeout:   cfg.JobTimeout(),
			Crawl:        cfg.CrawlPolicy(),
		},
		logger.Named("worker"),
		workerOpts...,
	)

	app.api = api.NewServer(app.queue, api.Config{
		RequestTimeout: cfg.RequestTimeout(),
		Ready:          app.ready,
	}, logger.Named("api"))

	built = true
	return app, nil
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Archive returns the configured blob store, or nil when archiving is off.
func (a *App) Archive() audit.BlobStore {
	return a.blobs
}

// Publisher returns the configured completion publisher, or nil.
func (a *App) Publisher() audit.Publisher {
	return a.publisher
}

// Queue exposes the job queue.
func (a *App) Queue() *queue.JobQueue {
	return a.queue
}

// Serve runs the HTTP API and the worker until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.worker.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.worker.Stop(shutdownCtx); err != nil {
		a.logger.Warn("worker stop incomplete", zap.Error(err))
	}
	return runErr
}

// RunWorker runs only the job worker until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	a.worker.Start(ctx)
	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.worker.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	return nil
}

// Audit queues one job, runs the worker until that job settles and
// returns the final record. Other jobs already waiting in the store are
// processed along the way.
func (a *App) Audit(ctx context.Context, jobType audit.JobType, target string, opts audit.Options) (audit.Job, error) {
	parsed, err := audit.ValidateTargetURL(target)
	if err != nil {
		return audit.Job{}, err
	}
	if err := audit.ValidateOptions(opts); err != nil {
		return audit.Job{}, err
	}
	id, err := a.queue.CreateJob(ctx, audit.JobSpec{
		Type:   jobType,
		Params: audit.JobParams{URL: parsed.String(), Options: opts},
	})
	if err != nil {
		return audit.Job{}, fmt.Errorf("queue audit: %w", err)
	}

	a.worker.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.worker.Stop(stopCtx); err != nil {
			a.logger.Warn("worker stop incomplete", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(auditPollEvery)
	defer ticker.Stop()
	for {
		job, err := a.queue.GetJob(ctx, id)
		if err != nil {
			return audit.Job{}, err
		}
		if job != nil && job.Status.Terminal() {
			return *job, nil
		}
		select {
		case <-ctx.Done():
			return audit.Job{}, fmt.Errorf("audit %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases every opened backend.
func (a *App) Close(_ context.Context) error {
	var errs []error
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub: %w", err))
		}
	}
	if a.index != nil {
		a.index.Close()
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ready probes the KV store with a cheap list read.
func (a *App) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyCheckBudget)
	defer cancel()
	if _, err := a.store.Length(ctx, queue.WaitingKey); err != nil {
		return fmt.Errorf("kv store: %w", err)
	}
	return nil
}

func setupStore(ctx context.Context, app *App) (kv.Store, error) {
	switch app.cfg.Store.Backend {
	case config.StoreRedis:
		store, err := rediskv.New(ctx, rediskv.Config{
			Addr:     app.cfg.Store.Redis.Addr,
			Password: app.cfg.Store.Redis.Password,
			DB:       app.cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store init failed: %w", err)
		}
		app.logger.Info("using redis store", zap.String("addr", app.cfg.Store.Redis.Addr))
		return store, nil
	default:
		app.logger.Info("using in-memory store")
		return memorykv.New(), nil
	}
}

func setupCrawler(app *App) *crawler.Crawler {
	cfg := app.cfg
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second,
	})
	app.logger.Info("using colly fetcher", zap.String("user_agent", cfg.Crawler.UserAgent))

	opts := []crawler.Option{
		crawler.WithLimiter(ratelimit.New(ratelimit.Config{
			RPS:     cfg.Crawler.RequestsPerSecond,
			Burst:   cfg.Crawler.Burst,
			HostRPS: cfg.Crawler.HostRPS,
		})),
	}
	app.logger.Info("rate limiter configured",
		zap.Float64("rps", cfg.Crawler.RequestsPerSecond),
		zap.Int("burst", cfg.Crawler.Burst))

	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			app.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			app.headless = headless
			opts = append(opts, crawler.WithHeadless(headless, detector.NewHeuristic(cfg.Headless.PromotionThresh)))
			app.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}

	return crawler.New(probe, uuid.NewPrefixed("page"), app.clock, app.logger.Named("crawler"), opts...)
}

// setupSinks builds the result recorder. It returns nil when no stage is
// configured.
func setupSinks(ctx context.Context, app *App) (*sink.Recorder, error) {
	var opts []sink.Option

	blobs, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		app.blobs = blobs
		opts = append(opts, sink.WithArchive(blobs, sha256.New()))
	}

	if err := setupIndex(ctx, app); err != nil {
		return nil, err
	}
	if app.index != nil {
		opts = append(opts, sink.WithIndex(app.index))
	}

	if err := setupPublisher(ctx, app); err != nil {
		return nil, err
	}
	if app.publisher != nil {
		opts = append(opts, sink.WithPublisher(app.publisher))
	}

	if len(opts) == 0 {
		app.logger.Info("no result sinks configured")
		return nil, nil
	}
	return sink.New(sink.Config{
		Prefix: app.cfg.Archive.Prefix,
		Topic:  app.cfg.PubSub.Topic,
	}, app.clock, app.logger.Named("sink"), opts...), nil
}

func setupArchive(ctx context.Context, app *App) (audit.BlobStore, error) {
	switch app.cfg.Archive.Backend {
	case config.ArchiveGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: app.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.gcs = store
		app.logger.Info("using GCS archive", zap.String("bucket", app.cfg.Archive.GCSBucket))
		return store, nil
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local archive", zap.String("path", app.cfg.Archive.LocalDir))
		return store, nil
	case config.ArchiveMemory:
		app.logger.Info("using in-memory archive")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func setupIndex(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Info("no DSN specified, report index disabled")
		return nil
	}
	index, err := pgstore.NewReportIndex(ctx, pgstore.Config{
		DSN:      app.cfg.DB.DSN,
		Table:    app.cfg.DB.Table,
		MaxConns: app.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("report index init failed: %w", err)
	}
	app.index = index
	if err := index.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("report index schema: %w", err)
	}
	app.logger.Info("report index initialized", zap.String("table", app.cfg.DB.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App) error {
	if app.cfg.PubSub.Topic == "" {
		return nil
	}
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		app.publisher = memorypublisher.New()
		return nil
	}
	publisher, err := gcppublisher.Open(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.pubsub = publisher
	app.publisher = publisher
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.Topic))
	return nil
}
