package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Error kinds reported for failures after extraction.
const (
	ErrorKindLoad       = "load"
	ErrorKindCheckpoint = "checkpoint"
)

// Pipeline wires extraction, validation, load and checkpointing for one run.
//
// Sources are loaded one after another, each in its own transaction, so a run
// holds at most one store connection for writes. Only one invocation is
// expected per deployment at a time; nothing here enforces that.
type Pipeline struct {
	tracer      trace.Tracer
	coordinator *Coordinator
	validator   Validator
	loader      *Loader
	tracker     *Tracker
	now         func() time.Time
}

func New(tracer trace.Tracer, coordinator *Coordinator, loader *Loader, tracker *Tracker) *Pipeline {
	return &Pipeline{
		tracer:      tracer,
		coordinator: coordinator,
		loader:      loader,
		tracker:     tracker,
		now:         time.Now,
	}
}

// Sources lists the registered source names.
func (p *Pipeline) Sources() []string {
	return p.coordinator.Sources()
}

// RunOnce executes a single extract-transform-load pass. It returns an error
// only when checkpoints cannot be opened; per-source failures are reported in
// the result.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run-once")
	defer span.End()

	result := domain.RunResult{StartedAt: p.now().UTC()}
	sources := p.coordinator.Sources()

	runs := make(map[string]*SourceRun, len(sources))
	cursors := make(map[string]*time.Time, len(sources))
	for _, source := range sources {
		run, err := p.tracker.Begin(ctx, source)
		if err != nil {
			for _, started := range runs {
				if _, ferr := started.Fail(ctx, err); ferr != nil {
					log.Printf("pipeline: %v", ferr)
				}
			}
			span.RecordError(err)
			return result, fmt.Errorf("begin run: %w", err)
		}
		runs[source] = run
		cursors[source] = run.Watermark()
	}

	extracted := p.coordinator.Extract(ctx, cursors)

	for _, source := range sources {
		run := runs[source]
		sr := domain.SourceResult{Source: source}

		if fe, failed := extracted.Failed[source]; failed {
			sr.ErrorKind = string(fe.Kind)
			p.fail(ctx, run, &sr, fe)
			result.Sources = append(result.Sources, sr)
			continue
		}

		batch := extracted.Succeeded[source]
		valid, rejected := p.validator.Validate(batch.Records)
		for _, verr := range rejected {
			log.Printf("pipeline %s: skipped %v", source, verr)
		}
		sr.Fetched = batch.Fetched
		sr.Skipped = batch.Skipped + len(rejected)
		sr.Unchanged = batch.Unchanged

		upserted, err := p.loader.Load(ctx, source, valid)
		if err != nil {
			sr.ErrorKind = ErrorKindLoad
			p.fail(ctx, run, &sr, err)
			result.Sources = append(result.Sources, sr)
			continue
		}
		sr.Inserted = upserted.Inserted
		sr.Updated = upserted.Updated

		outcome, err := run.Succeed(ctx, len(valid), domain.MaxLastUpdated(valid))
		sr.Status = domain.StatusSuccess
		sr.Duration = outcome.Duration
		sr.Watermark = outcome.Watermark
		if err != nil {
			// records are committed but the checkpoint still reads RUNNING
			sr.ErrorKind = ErrorKindCheckpoint
			sr.Error = err.Error()
			log.Printf("pipeline: %v", err)
		}
		result.Sources = append(result.Sources, sr)
	}

	result.FinishedAt = p.now().UTC()
	if len(extracted.Succeeded) == 0 {
		log.Printf("pipeline run: all %d sources failed, nothing loaded", len(sources))
	} else {
		log.Printf("pipeline run complete succeeded=%d failed=%d upserted=%d",
			result.Succeeded(), result.Failed(), result.Upserted())
	}
	span.SetAttributes(
		attribute.Int("succeeded", result.Succeeded()),
		attribute.Int("failed", result.Failed()),
		attribute.Int("upserted", result.Upserted()),
	)
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, run *SourceRun, sr *domain.SourceResult, cause error) {
	sr.Status = domain.StatusFailure
	sr.Error = cause.Error()
	log.Printf("pipeline %s failed: %v", sr.Source, cause)

	outcome, err := run.Fail(ctx, cause)
	if err != nil {
		log.Printf("pipeline: %v", err)
	}
	sr.Duration = outcome.Duration
	sr.Watermark = run.Watermark()
}

// Checkpoints returns the current state of every tracked source.
func (p *Pipeline) Checkpoints(ctx context.Context) ([]domain.Checkpoint, error) {
	return p.tracker.List(ctx)
}
