package service

import (
	"context"
	"errors"
	"log"
	"sync"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var ErrRunInProgress = errors.New("pipeline run already in progress")

type PipelineRunner interface {
	RunOnce(ctx context.Context) (domain.RunResult, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ETLService serializes pipeline runs within the process and invalidates the
// query cache after any run that changed data.
type ETLService struct {
	tracer   trace.Tracer
	pipeline PipelineRunner
	cache    CacheInvalidator
	mu       sync.Mutex
}

func NewETLService(tracer trace.Tracer, pipeline PipelineRunner, cache CacheInvalidator) *ETLService {
	return &ETLService{tracer: tracer, pipeline: pipeline, cache: cache}
}

// Run executes one pipeline pass. It returns ErrRunInProgress instead of
// queueing when another pass is still running.
func (s *ETLService) Run(ctx context.Context) (domain.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "etl-service.run")
	defer span.End()

	if !s.mu.TryLock() {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	result, err := s.pipeline.RunOnce(ctx)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	if result.Upserted() > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Printf("query cache invalidation failed: %v", err)
		}
	}
	return result, nil
}
