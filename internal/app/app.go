// Package app builds the long-lived services of a harvest and runs one mode
// with them. It is the only place that knows every concrete implementation.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/harvester/internal/api"
	"github.com/JakeFAU/harvester/internal/clock/system"
	"github.com/JakeFAU/harvester/internal/config"
	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/dispatcher"
	idgen "github.com/JakeFAU/harvester/internal/id/uuid"
	"github.com/JakeFAU/harvester/internal/metrics"
	"github.com/JakeFAU/harvester/internal/pipeline"
	"github.com/JakeFAU/harvester/internal/progress"
	"github.com/JakeFAU/harvester/internal/progress/sinks"
	"github.com/JakeFAU/harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/harvester/internal/scheduler"
	"github.com/JakeFAU/harvester/internal/scroll"
	"github.com/JakeFAU/harvester/internal/source/zhihu"
	"github.com/JakeFAU/harvester/internal/storage"
	"github.com/JakeFAU/harvester/internal/storage/blob"
	"github.com/JakeFAU/harvester/internal/storage/gcs"
	"github.com/JakeFAU/harvester/internal/storage/local"
	"github.com/JakeFAU/harvester/internal/storage/memory"
	"github.com/JakeFAU/harvester/internal/storage/postgres"
	"github.com/JakeFAU/harvester/internal/storage/sqlite"
	"github.com/JakeFAU/harvester/internal/surface/headless"
)

// App holds the services shared by a run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  system.Clock
	ids    crawler.IDGenerator

	sink     crawler.Sink
	client   *zhihu.Client
	surface  *headless.Surface
	hub      *progress.Hub
	snapshot *sinks.SnapshotSink
	server   *api.Server

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New wires every service described by cfg. reg receives the progress
// collectors; nil selects the default registry. The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metrics.Init()

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    idgen.New(),
	}

	sink, err := a.buildSink(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.sink = sink

	a.client = zhihu.New(zhihu.Config{
		BaseURL:   cfg.Source.BaseURL,
		APIURL:    cfg.Source.APIURL,
		ColumnURL: cfg.Source.ColumnURL,
		UserAgent: cfg.Source.UserAgent,
		Cookies:   cfg.Source.Cookies,
		Timeout:   cfg.SourceTimeout(),
	}, logger)

	if cfg.Headless.Enabled {
		a.surface = headless.New(headless.Config{
			Headless:          cfg.Headless.Headless,
			ExecPath:          cfg.Headless.ExecPath,
			UserAgent:         cfg.Source.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout(),
		}, logger)
		a.addCloser("surface", func() error {
			a.surface.Close()
			return nil
		})
	}

	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.snapshot = sinks.NewSnapshotSink()
	a.hub = progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink, a.snapshot)

	if cfg.Server.Enabled {
		a.server = api.NewServer(a.snapshot, logger.Named("api"))
	}

	logger.Info("harvester services initialized",
		zap.String("mode", cfg.Mode),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("notices", cfg.PubSub.TopicName != ""),
	)
	return a, nil
}

func (a *App) buildSink(ctx context.Context) (crawler.Sink, error) {
	cfg := a.cfg.Storage
	var sink crawler.Sink
	switch cfg.Backend {
	case config.BackendMemory:
		sink = memory.NewSink()
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		a.addCloser("postgres", func() error {
			pg.Close()
			return nil
		})
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		sink = pg
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite sink: %w", err)
		}
		a.addCloser("sqlite", db.Close)
		sink = db
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		sink = blob.New(store, cfg.Prefix, a.logger)
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCS.Bucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		a.addCloser("gcs", store.Close)
		sink = blob.New(store, cfg.Prefix, a.logger)
	default:
		return nil, &crawler.ConfigError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}

	if a.cfg.PubSub.TopicName == "" {
		return sink, nil
	}
	pub, err := pubsub.Open(ctx, pubsub.Config{ProjectID: a.cfg.PubSub.ProjectID, TopicName: a.cfg.PubSub.TopicName})
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.addCloser("pubsub", pub.Close)
	return storage.NewPublishingSink(sink, pub, a.cfg.PubSub.TopicName, a.clock, a.logger), nil
}

// Run executes the configured mode once. The ops server, when enabled, lives
// for the duration of the run.
func (a *App) Run(ctx context.Context) (dispatcher.Summary, error) {
	rawID, err := a.ids.NewID()
	if err != nil {
		return dispatcher.Summary{}, fmt.Errorf("new run id: %w", err)
	}
	runID, err := uuid.Parse(rawID)
	if err != nil {
		return dispatcher.Summary{}, fmt.Errorf("parse run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", rawID), zap.String("mode", a.cfg.Mode))
	reporter := progress.NewReporter(a.hub, runID, a.cfg.Mode, a.clock.Now)

	d := dispatcher.New(a.dispatchOptions(), a.deps(reporter, logger))

	if a.server == nil {
		return d.Run(ctx)
	}

	serveCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		return a.server.Serve(gctx, a.cfg.Server.Port)
	})
	a.server.MarkReady()

	sum, runErr := d.Run(ctx)
	stopServer()
	if err := g.Wait(); err != nil {
		logger.Warn("ops server stopped with error", zap.Error(err))
	}
	return sum, runErr
}

func (a *App) dispatchOptions() dispatcher.Options {
	return dispatcher.Options{
		Mode:      a.cfg.Mode,
		Keywords:  a.cfg.Crawler.Keywords,
		Targets:   a.cfg.Crawler.Targets,
		MaxItems:  a.cfg.Crawler.MaxItems,
		StartPage: a.cfg.Crawler.StartPage,
		PageSize:  a.cfg.Crawler.PageSize,
		WarmupURL: a.cfg.Source.SearchWarmupURL,
	}
}

func (a *App) deps(reporter *progress.Reporter, logger *zap.Logger) dispatcher.Deps {
	sched := scheduler.New(a.cfg.Crawler.Concurrency, logger)
	deps := dispatcher.Deps{
		Sessions: a.client,
		Search:   a.client,
		Creators: a.client,
		Topics:   a.client,
		Sink:     a.sink,
		Resolver: pipeline.New(sched, a.client, a.sink, reporter, logger),
		Comments: pipeline.NewCommentHarvester(sched, a.client, a.sink, pipeline.CommentOptions{
			Enabled:    a.cfg.Crawler.CommentsEnabled,
			MaxPerItem: a.cfg.Crawler.MaxCommentsPerItem,
			Jitter:     a.cfg.Crawler.CommentJitter,
		}, reporter, logger),
		Reporter: reporter,
		Logger:   logger,
	}
	if a.surface != nil {
		deps.Surface = a.surface
		deps.Sessions = sessionBridge{from: a.surface, to: a.client}
		deps.Collector = scroll.New(a.surface, nil, scroll.Options{
			MaxEmptyRounds: a.cfg.Scroll.MaxEmptyRounds,
			EscalateAfter:  a.cfg.Scroll.EscalateAfter,
			PollInterval:   a.cfg.Scroll.PollInterval,
			MaxPolls:       a.cfg.Scroll.MaxPolls,
			Settle:         a.cfg.Scroll.Settle,
			LoadMoreWait:   a.cfg.Scroll.LoadMoreWait,
			InitialWait:    a.cfg.Scroll.InitialWait,
			Deadline:       a.cfg.Scroll.Deadline,
		}, reporter, logger)
	}
	return deps
}

// sessionBridge reads the session from the browser and hands it to the
// source client so detail and comment requests carry the same cookies.
type sessionBridge struct {
	from crawler.SessionProvider
	to   *zhihu.Client
}

func (b sessionBridge) Session(ctx context.Context) (crawler.Session, error) {
	sess, err := b.from.Session(ctx)
	if err != nil {
		return crawler.Session{}, fmt.Errorf("read browser session: %w", err)
	}
	b.to.UseSession(sess)
	return sess, nil
}

// Snapshot exposes the per-run progress aggregate.
func (a *App) Snapshot() *sinks.SnapshotSink {
	return a.snapshot
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close flushes progress and releases every service in reverse start order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("closing service failed", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
