// Package bootstrap wires configuration into the object graph shared by the
// api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doctriage/doctriage/internal/config"
	"github.com/doctriage/doctriage/internal/core/ports"
	"github.com/doctriage/doctriage/internal/core/usecase"
	"github.com/doctriage/doctriage/internal/infrastructure/classify"
	"github.com/doctriage/doctriage/internal/infrastructure/enhance"
	"github.com/doctriage/doctriage/internal/infrastructure/extractor"
	"github.com/doctriage/doctriage/internal/infrastructure/extractor/excel"
	"github.com/doctriage/doctriage/internal/infrastructure/extractor/image"
	"github.com/doctriage/doctriage/internal/infrastructure/extractor/pdf"
	"github.com/doctriage/doctriage/internal/infrastructure/extractor/word"
	"github.com/doctriage/doctriage/internal/infrastructure/jobstore"
	"github.com/doctriage/doctriage/internal/infrastructure/jobstore/memory"
	"github.com/doctriage/doctriage/internal/infrastructure/jobstore/postgres"
	"github.com/doctriage/doctriage/internal/infrastructure/jobstore/redis"
	"github.com/doctriage/doctriage/internal/infrastructure/ocr"
	"github.com/doctriage/doctriage/internal/infrastructure/queue/nats"
	"github.com/doctriage/doctriage/internal/infrastructure/resilience"
	"github.com/doctriage/doctriage/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Store      ports.JobStore
	Storage    ports.ObjectStorage
	Queue      *nats.Queue
	Strategies ports.StrategySource

	Classify ports.SyncClassifier
	Submit   ports.JobSubmitter
	Status   ports.JobReader
	Process  ports.JobProcessor
	Reaper   *usecase.Reaper

	closeFn func()
}

// New builds the full graph. The observer receives pipeline telemetry; the
// worker passes its metrics registry, the api passes nil.
func New(ctx context.Context, cfg config.Config, observer ports.PipelineObserver, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger)

	store, closeStore, err := buildJobStore(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	pipeline, strategies, err := buildPipeline(cfg, observer, logger)
	if err != nil {
		queue.Close()
		closeStore()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Store:      store,
		Storage:    storage,
		Queue:      queue,
		Strategies: strategies,

		Classify: usecase.NewClassifyService(pipeline),
		Submit:   usecase.NewSubmitService(store, storage, queue, strategies, cfg.MaxBatchSize, logger),
		Status:   usecase.NewStatusService(store),
		Process:  usecase.NewProcessService(store, storage, pipeline, observer, logger),
		Reaper:   usecase.NewReaper(store, cfg.JobRunningTimeout, observer, logger),

		closeFn: func() {
			queue.Close()
			closeStore()
		},
	}, nil
}

// NewClassifierOnly builds just the synchronous pipeline, for binaries that
// never touch the queue or the job store (the MCP adapter).
func NewClassifierOnly(cfg config.Config, logger *slog.Logger) (ports.SyncClassifier, ports.StrategySource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pipeline, strategies, err := buildPipeline(cfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewClassifyService(pipeline), strategies, nil
}

func buildPipeline(cfg config.Config, observer ports.PipelineObserver, logger *slog.Logger) (*usecase.Pipeline, *classify.Registry, error) {
	strategies, err := classify.NewRegistryFromConfig(cfg.StrategyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load strategies: %w", err)
	}

	registry := extractor.NewRegistry()
	tess := ocr.NewTesseract(cfg.TesseractBin, cfg.TesseractLangs)
	for _, e := range []ports.Extractor{pdf.New(), word.New(), excel.New(), image.New(tess)} {
		if err := registry.Register(e); err != nil {
			return nil, nil, fmt.Errorf("register extractor: %w", err)
		}
	}

	engine := classify.NewEngine(strategies, classify.EngineConfig{
		SaturationK:   cfg.ScoreSaturationK,
		MinConfidence: cfg.MinConfidence,
	}, logger)
	return usecase.NewPipeline(registry, engine, enhance.New(), observer), strategies, nil
}

// buildJobStore selects the persistence backend. The networked backends are
// wrapped in the resilience decorator; the in-memory store has nothing worth
// retrying.
func buildJobStore(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.JobStore, func(), error) {
	switch cfg.JobStoreBackend {
	case "memory":
		return memory.New(), func() {}, nil
	case "redis":
		store, err := redis.New(ctx, redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
			TTL:  cfg.JobTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis jobstore: %w", err)
		}
		return jobstore.NewResilient(store, executor), func() { _ = store.Close() }, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return jobstore.NewResilient(store, executor), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown jobstore backend %q", cfg.JobStoreBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
