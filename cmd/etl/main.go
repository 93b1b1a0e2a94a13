package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kasparro-backend/internal/cache"
	"kasparro-backend/internal/config"
	"kasparro-backend/internal/db"
	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/pipeline"
	"kasparro-backend/internal/provider"
	"kasparro-backend/internal/repository"
	"kasparro-backend/internal/service"
	"kasparro-backend/pkg/tracing"

	"github.com/joho/godotenv"
)

const serviceName = "kasparro-etl"

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	openStoreFunc  = func(ctx context.Context, dsn string) (repository.PgxPool, func(), error) {
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
	openCacheFunc = func(ctx context.Context, addr string) (service.RedisClient, func(), error) {
		client, err := cache.Connect(ctx, addr)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}
	newAdaptersFunc = provider.NewAdapters
)

// One pipeline pass. Per-source failures are reported but do not change the
// exit status; only configuration and store errors do.
func main() {
	loadEnvFunc()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx)
	if err != nil {
		log.Fatalf("etl: %v", err)
	}
	for _, s := range result.Sources {
		fmt.Fprintln(os.Stdout, summaryLine(s))
	}
}

func run(ctx context.Context) (domain.RunResult, error) {
	cfg := loadConfigFunc()
	if err := cfg.Validate(); err != nil {
		return domain.RunResult{}, err
	}

	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	pool, closePool, err := openStoreFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		return domain.RunResult{}, err
	}
	defer closePool()

	marketRepo := repository.NewMarketDataRepository(pool, tracer)
	checkpointRepo := repository.NewCheckpointRepository(pool, tracer)
	if err := marketRepo.RunMigrations(ctx); err != nil {
		return domain.RunResult{}, fmt.Errorf("%w: migrate: %v", domain.ErrStoreUnavailable, err)
	}
	if err := checkpointRepo.RunMigrations(ctx); err != nil {
		return domain.RunResult{}, fmt.Errorf("%w: migrate: %v", domain.ErrStoreUnavailable, err)
	}

	adapters, err := newAdaptersFunc(tracer, cfg.ETLSources, cfg.ProviderConfigs())
	if err != nil {
		return domain.RunResult{}, &domain.ConfigurationError{Field: "ETL_SOURCES", Reason: err.Error()}
	}

	var invalidator service.CacheInvalidator
	if redisClient, closeRedis, err := openCacheFunc(ctx, cfg.RedisURL); err != nil {
		log.Printf("Warning: %v; API page cache will expire on its own", err)
	} else {
		defer closeRedis()
		invalidator = service.NewMarketDataService(tracer, marketRepo, redisClient, cfg.QueryCacheTTL())
	}

	etlPipeline := pipeline.New(
		tracer,
		pipeline.NewCoordinator(tracer, adapters, cfg.AdapterTimeout()),
		pipeline.NewLoader(tracer, marketRepo),
		pipeline.NewTracker(tracer, checkpointRepo),
	)
	result, err := service.NewETLService(tracer, etlPipeline, invalidator).Run(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return result, nil
}

func summaryLine(s domain.SourceResult) string {
	line := fmt.Sprintf("%s status=%s fetched=%d skipped=%d unchanged=%d inserted=%d updated=%d duration=%s",
		s.Source, s.Status, s.Fetched, s.Skipped, s.Unchanged, s.Inserted, s.Updated, s.Duration)
	if s.Error != "" {
		line += fmt.Sprintf(" kind=%s error=%q", s.ErrorKind, s.Error)
	}
	return line
}
