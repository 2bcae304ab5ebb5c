// Command verity ingests compliance documents and answers questions about
// them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/verity/internal/adapters/driven/ai"
	"github.com/custodia-labs/verity/internal/adapters/driven/config/file"
	memorylock "github.com/custodia-labs/verity/internal/adapters/driven/lock/memory"
	redislock "github.com/custodia-labs/verity/internal/adapters/driven/lock/redis"
	promstats "github.com/custodia-labs/verity/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/verity/internal/adapters/driven/objectstore/filesystem"
	"github.com/custodia-labs/verity/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/verity/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/verity/internal/adapters/driving/cli"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/services"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/normalisers"
	"github.com/custodia-labs/verity/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

// store is the persistence surface both database backends provide.
type store interface {
	DocumentStore() driven.DocumentStore
	ChunkStore() driven.ChunkStore
	VectorSearcher() driven.VectorSearcher
	ChatStore() driven.ChatStore
	TaskStore() driven.TaskStore
	SchedulerStore() driven.SchedulerStore
	Close() error
}

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+cli.FormatError(err))
		os.Exit(1)
	}
}

// bootstrap builds every service from settings. Missing AI providers are
// reported as warnings rather than failing the command.
func bootstrap(ctx context.Context) (*cli.Services, func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	baseDir := filepath.Join(home, ".verity")

	configStore, err := file.NewConfigStore(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := openStore(ctx, settings.Storage, filepath.Join(baseDir, "data"))
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			logger.Warn("close store: %v", err)
		}
	})

	lease, err := openLocker(ctx, settings.RedisAddr)
	if err != nil {
		release()
		return nil, nil, err
	}
	if c, ok := lease.(io.Closer); ok {
		closers = append(closers, func() {
			if err := c.Close(); err != nil {
				logger.Warn("close locker: %v", err)
			}
		})
	}

	objects, err := filesystem.NewStore(filepath.Join(baseDir, "objects"))
	if err != nil {
		release()
		return nil, nil, err
	}
	prompts, err := file.NewPromptStore(filepath.Join(baseDir, "prompts"))
	if err != nil {
		release()
		return nil, nil, err
	}
	chunking, err := postprocessors.NewIngestPipeline(settings.Pipeline)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to build chunking pipeline: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := promstats.New(registry)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	providers := ai.Initialise(ctx, settings, false)
	closers = append(closers, providers.Close)

	docStore := db.DocumentStore()
	chunkStore := db.ChunkStore()

	status := services.NewReconciler(docStore, chunkStore)
	text := services.NewTextSource(objects, normalisers.NewDefaultRegistry())
	ingestion := services.NewIngestionService(docStore, chunkStore, objects, text, chunking)
	worker := services.NewEmbeddingWorker(docStore, chunkStore, providers.EmbeddingService, status, settings.Pipeline, metrics)
	retriever := services.NewRetriever(docStore, db.VectorSearcher(), settings.Retrieval, settings.Pipeline.MinWords, metrics)
	answer := services.NewAnswerService(status, retriever, providers.EmbeddingService, providers.LLMService,
		prompts, db.ChatStore(), settings.Pipeline.CallTimeout, metrics)
	scheduler := services.NewScheduler(settingsService.Scheduler(), db.SchedulerStore(), docStore,
		ingestion, worker, lease, settings.Pipeline.ClaimTTL)

	built := &cli.Services{
		UserID:     settings.UserID,
		ServerAddr: settings.ServerAddr,
		Settings:   settingsService,
		Ingestion:  ingestion,
		Pipeline:   services.NewPipeline(ingestion, worker, status),
		Worker:     worker,
		Status:     status,
		Answer:     answer,
		Tasks:      services.NewTaskService(db.TaskStore(), docStore),
		Documents:  services.NewDocumentService(docStore, chunkStore, objects),
		Scheduler:  scheduler,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Warnings:   providers.Warnings,
	}
	return built, release, nil
}

func openStore(ctx context.Context, cfg domain.StorageSettings, dataDir string) (store, error) {
	switch cfg.Driver {
	case domain.StoragePostgres:
		db, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	case domain.StorageSQLite, "":
		db, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openLocker uses redis when an address is configured so leases are shared
// between processes, and an in-process locker otherwise.
func openLocker(ctx context.Context, redisAddr string) (driven.Locker, error) {
	if redisAddr == "" {
		return memorylock.NewLocker(), nil
	}
	l, err := redislock.Dial(ctx, redisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return l, nil
}
