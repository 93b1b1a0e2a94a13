package job

import (
	"context"
	"errors"
	"log"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/service"

	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	Run(ctx context.Context) (domain.RunResult, error)
}

// PipelineJob runs the pipeline on start and then every interval until its
// context is cancelled.
type PipelineJob struct {
	tracer   trace.Tracer
	runner   PipelineRunner
	interval time.Duration
}

func NewPipelineJob(tracer trace.Tracer, runner PipelineRunner, interval time.Duration) *PipelineJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PipelineJob{tracer: tracer, runner: runner, interval: interval}
}

// Start blocks until ctx is cancelled.
func (j *PipelineJob) Start(ctx context.Context) {
	log.Printf("Pipeline job starting (interval %s)", j.interval)

	j.runOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Pipeline job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *PipelineJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "job.pipeline")
	defer span.End()

	result, err := j.runner.Run(ctx)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		log.Println("pipeline job: previous run still in progress, skipping tick")
	case err != nil:
		span.RecordError(err)
		log.Printf("pipeline job error: %v", err)
	default:
		for _, s := range result.Sources {
			switch {
			case s.Status == domain.StatusFailure:
				log.Printf("pipeline job: %s failed kind=%s: %s", s.Source, s.ErrorKind, s.Error)
			case s.Error != "":
				log.Printf("pipeline job: %s loaded with error kind=%s: %s", s.Source, s.ErrorKind, s.Error)
			}
		}
	}
}
