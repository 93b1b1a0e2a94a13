package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kasparro-backend/internal/bot"
	"kasparro-backend/internal/cache"
	"kasparro-backend/internal/config"
	"kasparro-backend/internal/db"
	"kasparro-backend/internal/handler"
	"kasparro-backend/internal/job"
	"kasparro-backend/internal/pipeline"
	"kasparro-backend/internal/provider"
	"kasparro-backend/internal/repository"
	"kasparro-backend/internal/service"
	"kasparro-backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "kasparro-backend/docs"
)

const serviceName = "kasparro-api"

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
	newAdaptersFunc        = provider.NewAdapters
	startPipelineJobFunc   = func(j *job.PipelineJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Kasparro Market Data API
// @version         1.0
// @description     Normalized multi-provider crypto market data with pipeline health telemetry.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	pool, closePool, err := openStoreFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer closePool()

	// The API still serves without Redis; pages are just not cached.
	redisClient, closeRedis, err := openCacheFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: %v; query cache disabled", err)
	} else {
		defer closeRedis()
	}

	marketRepo := repository.NewMarketDataRepository(pool, tracer)
	checkpointRepo := repository.NewCheckpointRepository(pool, tracer)
	if err := marketRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	if err := checkpointRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	adapters, err := newAdaptersFunc(tracer, cfg.ETLSources, cfg.ProviderConfigs())
	if err != nil {
		log.Fatalf("failed to build provider adapters: %v", err)
	}
	coordinator := pipeline.NewCoordinator(tracer, adapters, cfg.AdapterTimeout())
	etlPipeline := pipeline.New(
		tracer,
		coordinator,
		pipeline.NewLoader(tracer, marketRepo),
		pipeline.NewTracker(tracer, checkpointRepo),
	)

	marketDataService := service.NewMarketDataService(tracer, marketRepo, redisClient, cfg.QueryCacheTTL())
	statsService := service.NewStatsService(tracer, checkpointRepo)
	healthService := service.NewHealthService(tracer, marketRepo, checkpointRepo, coordinator.Sources(), cfg.StaleAfter())
	etlService := service.NewETLService(tracer, etlPipeline, marketDataService)

	startPipelineJobFunc(job.NewPipelineJob(tracer, etlService, cfg.PollInterval()), ctx)
	startTelegramBotFunc(cfg.TelegramBotToken, marketDataService, statsService)

	h := handler.New(tracer, marketDataService, healthService, statsService, etlService, coordinator)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	log.Printf("HTTP server listening on %s", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
