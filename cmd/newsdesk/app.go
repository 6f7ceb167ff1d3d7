package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/newsdesk/internal/ai"
	"github.com/IshaanNene/newsdesk/internal/api"
	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/engine"
	"github.com/IshaanNene/newsdesk/internal/events"
	"github.com/IshaanNene/newsdesk/internal/fetcher"
	"github.com/IshaanNene/newsdesk/internal/lock"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/pipeline"
	"github.com/IshaanNene/newsdesk/internal/storage"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	fetcher    *fetcher.FallbackFetcher
	crawler    *crawler.Service
	store      *storage.Store
	locker     lock.Locker
	publisher  events.Publisher
	ingestor   *engine.Ingestor
	scheduler  *engine.Scheduler
	processor  *engine.Processor
	backfiller *engine.Backfiller
}

// buildApp connects every backend named in cfg. The caller must Close it.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   observability.NewMetrics(logger),
		locker:    lock.Nop{},
		publisher: events.Nop{},
	}

	var err error
	if a.fetcher, err = fetcher.New(cfg, logger); err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	a.crawler = crawler.New(cfg, a.fetcher, a.metrics, logger)

	if a.store, err = storage.Open(ctx, cfg.Storage, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if a.locker, err = lock.New(ctx, cfg.Lock, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect lock: %w", err)
	}

	if a.publisher, err = events.New(cfg.Events, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect events: %w", err)
	}

	var gen ai.Generator
	if cfg.AI.Enabled {
		gen = ai.NewLLMClient(cfg.AI, a.metrics, logger)
	}
	normalizer := ai.NewNormalizer(cfg, gen, a.metrics, logger)

	a.ingestor = engine.NewIngestor(a.crawler, pipeline.Default(cfg.Extractor, logger), a.store.Articles, logger)
	a.scheduler = engine.NewScheduler(cfg.Scheduler, a.ingestor, a.locker, a.publisher, a.metrics, logger)
	a.processor = engine.NewProcessor(a.crawler, normalizer, a.store.Processed, a.publisher, a.metrics, logger)
	a.backfiller = engine.NewBackfiller(a.crawler, a.store.Articles, logger)

	logger.Info("components ready",
		"fetcher", cfg.Fetcher.Type,
		"storage", a.store.Name(),
		"ai_provider", normalizer.Provider(),
		"lock", cfg.Lock.Enabled,
		"events", cfg.Events.Enabled,
	)
	return a, nil
}

// server builds the HTTP API over the app's components.
func (a *app) server() *api.Server {
	return api.NewServer(a.cfg.Server, api.Deps{
		Crawler:    a.crawler,
		Ingestion:  a.scheduler,
		Processor:  a.processor,
		Backfill:   a.backfiller,
		Articles:   a.store.Articles,
		Processed:  a.store.Processed,
		Metrics:    a.metrics,
		MetricsCfg: a.cfg.Metrics,
	}, a.logger)
}

// Close releases every backend that was opened.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.locker != nil {
		errs = append(errs, a.locker.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.fetcher != nil {
		errs = append(errs, a.fetcher.Close())
	}
	return errors.Join(errs...)
}
