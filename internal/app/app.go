// Package app assembles the service from configuration: stores, fetcher,
// renderer, extraction chain, normalizer, and the run coordinator.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/api"
	archgcs "github.com/lmcheong/eventtide/internal/archive/gcs"
	archlocal "github.com/lmcheong/eventtide/internal/archive/local"
	"github.com/lmcheong/eventtide/internal/clock/system"
	"github.com/lmcheong/eventtide/internal/config"
	"github.com/lmcheong/eventtide/internal/coordinator"
	"github.com/lmcheong/eventtide/internal/extract"
	"github.com/lmcheong/eventtide/internal/extract/ai"
	"github.com/lmcheong/eventtide/internal/fetch"
	"github.com/lmcheong/eventtide/internal/id/uuid"
	"github.com/lmcheong/eventtide/internal/ingest"
	"github.com/lmcheong/eventtide/internal/logging"
	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/normalize"
	"github.com/lmcheong/eventtide/internal/pipeline"
	"github.com/lmcheong/eventtide/internal/publish/pubsub"
	"github.com/lmcheong/eventtide/internal/render"
	"github.com/lmcheong/eventtide/internal/storage/memory"
	"github.com/lmcheong/eventtide/internal/storage/postgres"
)

// App holds every long-lived component of the service.
type App struct {
	Cfg         config.Config
	Logger      *zap.Logger
	Coordinator *coordinator.Coordinator
	Server      *api.Server

	store    pipeline.EventStore
	renderer *render.Renderer
	closers  []func()
}

// New builds the full dependency graph. Callers must Close.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Cfg: cfg, Logger: logger}
	clk := system.New()

	store, logStore, err := a.buildStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	var renderer pipeline.Renderer = render.NewNoop()
	if cfg.Headless.Enabled {
		r, err := render.New(render.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		a.renderer = r
		renderer = r
	}

	detector := fetch.NewDetector(cfg.Headless.MinHTMLBytes, cfg.Headless.MinElements)
	fetcher := fetch.New(fetch.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		Timeout:        time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}, detector, renderer, logger)

	var aiExtractor pipeline.AIExtractor
	if cfg.AI.Endpoint != "" {
		client, err := ai.New(ai.Config{
			Endpoint: cfg.AI.Endpoint,
			APIKey:   cfg.AI.APIKey,
			Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init ai extractor: %w", err)
		}
		aiExtractor = client
	}

	chain := extract.NewChain(aiExtractor, fetcher, clk, logger)
	normalizer := normalize.New(clk, logger)
	engine := ingest.New(store, logStore, clk, cfg.Scraper.BatchSize, logger)

	archive, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Coordinator = coordinator.New(
		coordinator.Config{
			RunDeadline:     cfg.RunDeadline(),
			RetentionDays:   cfg.Scraper.RetentionDays,
			CompletionTopic: cfg.PubSub.TopicName,
		},
		fetcher, chain, normalizer, engine,
		archive, publisher,
		clk, uuid.NewGenerator(), logger,
	)
	a.Server = api.NewServer(a.Coordinator, clk, cfg, logger)
	return a, nil
}

func (a *App) buildStores(ctx context.Context) (pipeline.EventStore, pipeline.IngestLogStore, error) {
	if a.Cfg.DB.DSN == "" {
		a.Logger.Warn("no database configured, using in-memory store")
		return memory.NewEventStore(), memory.NewIngestLog(), nil
	}
	store, err := postgres.NewEventStore(ctx, postgres.EventStoreConfig{
		DSN:      a.Cfg.DB.DSN,
		Table:    a.Cfg.DB.Table,
		MaxConns: a.Cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init event store: %w", err)
	}
	logStore, err := postgres.NewIngestLog(store.Pool(), "ingestion_log")
	if err != nil {
		return nil, nil, fmt.Errorf("init ingestion log: %w", err)
	}
	return store, logStore, nil
}

func (a *App) buildArchive(ctx context.Context) (pipeline.BlobStore, error) {
	switch a.Cfg.Archive.Provider {
	case "", "none":
		return nil, nil
	case "local":
		store, err := archlocal.New(a.Cfg.Archive.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		store, err := archgcs.New(ctx, a.Cfg.Archive.GCSBucket, a.Cfg.Archive.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", a.Cfg.Archive.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (pipeline.Publisher, error) {
	if a.Cfg.PubSub.ProjectID == "" || a.Cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsub.New(ctx, a.Cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	a.closers = append(a.closers, func() { _ = pub.Close() })
	return pub, nil
}

// Close releases every held resource in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
