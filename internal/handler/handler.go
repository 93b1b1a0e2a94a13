package handler

import (
	"context"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/provider"
	"kasparro-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type MarketDataQuerier interface {
	Query(ctx context.Context, filter domain.MarketDataFilter, limit, offset int) (service.Page, error)
}

type HealthChecker interface {
	Check(ctx context.Context) service.HealthReport
}

type StatsReader interface {
	Stats(ctx context.Context) ([]domain.SourceStats, error)
	Checkpoints(ctx context.Context) ([]domain.Checkpoint, error)
}

type ETLRunner interface {
	Run(ctx context.Context) (domain.RunResult, error)
}

type AdapterLookup interface {
	Adapter(source string) (provider.Adapter, bool)
	Sources() []string
}

type Handler struct {
	tracer     trace.Tracer
	marketData MarketDataQuerier
	health     HealthChecker
	stats      StatsReader
	etl        ETLRunner
	adapters   AdapterLookup
}

func New(
	tracer trace.Tracer,
	marketData MarketDataQuerier,
	health HealthChecker,
	stats StatsReader,
	etl ETLRunner,
	adapters AdapterLookup,
) *Handler {
	return &Handler{
		tracer:     tracer,
		marketData: marketData,
		health:     health,
		stats:      stats,
		etl:        etl,
		adapters:   adapters,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RequestID())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/status", h.Status)
	api.GET("/data", h.GetData)
	api.GET("/health", h.GetHealth)
	api.GET("/stats", h.GetStats)
	api.GET("/checkpoints", h.GetCheckpoints)
	api.POST("/etl/run", h.RunETL)
	api.GET("/sources/:source/raw", h.GetRawSource)
}
