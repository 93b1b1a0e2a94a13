package service

import (
	"context"
	"fmt"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type CheckpointLister interface {
	ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error)
}

type StatsService struct {
	tracer      trace.Tracer
	checkpoints CheckpointLister
}

func NewStatsService(tracer trace.Tracer, checkpoints CheckpointLister) *StatsService {
	return &StatsService{tracer: tracer, checkpoints: checkpoints}
}

// Checkpoints returns every source's checkpoint row.
func (s *StatsService) Checkpoints(ctx context.Context) ([]domain.Checkpoint, error) {
	ctx, span := s.tracer.Start(ctx, "stats-service.checkpoints")
	defer span.End()

	cps, err := s.checkpoints.ListCheckpoints(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list checkpoints: %v", domain.ErrStoreUnavailable, err)
	}
	if cps == nil {
		cps = []domain.Checkpoint{}
	}
	return cps, nil
}

// Stats summarizes run history per source.
func (s *StatsService) Stats(ctx context.Context) ([]domain.SourceStats, error) {
	cps, err := s.Checkpoints(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]domain.SourceStats, 0, len(cps))
	for _, cp := range cps {
		stats = append(stats, domain.StatsFromCheckpoint(cp))
	}
	return stats, nil
}
