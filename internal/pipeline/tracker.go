package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrRunFinished = errors.New("checkpoint run already finished")

// checkpointWriteTimeout bounds the final checkpoint write, which outlives the
// run's own context.
const checkpointWriteTimeout = 10 * time.Second

// CheckpointStore holds one checkpoint row per source. FinishRun must not move
// the watermark backwards and must leave it untouched on failure.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, source string) (*domain.Checkpoint, error)
	StartRun(ctx context.Context, source string, startedAt time.Time) error
	FinishRun(ctx context.Context, source string, outcome domain.RunOutcome) error
	ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error)
}

// Tracker drives the per-source checkpoint state machine.
type Tracker struct {
	tracer trace.Tracer
	store  CheckpointStore
	now    func() time.Time
}

func NewTracker(tracer trace.Tracer, store CheckpointStore) *Tracker {
	return &Tracker{tracer: tracer, store: store, now: time.Now}
}

// SourceRun is a single source's RUNNING checkpoint. It ends exactly once.
type SourceRun struct {
	tracker   *Tracker
	source    string
	startedAt time.Time
	watermark *time.Time

	mu     sync.Mutex
	status domain.RunStatus
}

// Begin moves source's checkpoint to RUNNING and returns the handle that will
// record its outcome.
func (t *Tracker) Begin(ctx context.Context, source string) (*SourceRun, error) {
	ctx, span := t.tracer.Start(ctx, "tracker.begin")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	prev, err := t.store.GetCheckpoint(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", source, err)
	}
	if prev != nil && prev.LastRunStatus == domain.StatusRunning {
		// only one pipeline invocation runs at a time, so this is a run that died mid-flight
		log.Printf("checkpoint %s was left RUNNING by an interrupted run; restarting", source)
	}

	startedAt := t.now().UTC()
	if err := t.store.StartRun(ctx, source, startedAt); err != nil {
		return nil, fmt.Errorf("start checkpoint %s: %w", source, err)
	}

	return &SourceRun{
		tracker:   t,
		source:    source,
		startedAt: startedAt,
		watermark: prev.Watermark(),
		status:    domain.StatusRunning,
	}, nil
}

// List returns every tracked checkpoint.
func (t *Tracker) List(ctx context.Context) ([]domain.Checkpoint, error) {
	ctx, span := t.tracer.Start(ctx, "tracker.list")
	defer span.End()
	return t.store.ListCheckpoints(ctx)
}

func (r *SourceRun) Source() string { return r.source }

// Watermark is the resume cursor recorded by the last successful run.
func (r *SourceRun) Watermark() *time.Time { return r.watermark }

// Succeed records a committed load. The watermark advances to batchMax unless
// that would move it backwards.
func (r *SourceRun) Succeed(ctx context.Context, records int, batchMax *time.Time) (domain.RunOutcome, error) {
	watermark := r.watermark
	if batchMax != nil && (watermark == nil || batchMax.After(*watermark)) {
		v := batchMax.UTC()
		watermark = &v
	}
	return r.finish(ctx, domain.RunOutcome{
		Status:           domain.StatusSuccess,
		RecordsProcessed: records,
		Watermark:        watermark,
	})
}

// Fail records a fetch or load failure, keeping the prior watermark.
func (r *SourceRun) Fail(ctx context.Context, cause error) (domain.RunOutcome, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.finish(ctx, domain.RunOutcome{
		Status:    domain.StatusFailure,
		Watermark: r.watermark,
		Error:     msg,
	})
}

func (r *SourceRun) finish(ctx context.Context, outcome domain.RunOutcome) (domain.RunOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.status.CanTransition(outcome.Status) {
		return domain.RunOutcome{}, fmt.Errorf("%s: %w (status %s)", r.source, ErrRunFinished, r.status)
	}

	ctx, span := r.tracker.tracer.Start(ctx, "tracker.finish")
	defer span.End()
	span.SetAttributes(attribute.String("source", r.source), attribute.String("status", string(outcome.Status)))

	end := r.tracker.now().UTC()
	outcome.EndTime = end
	outcome.Duration = end.Sub(r.startedAt)
	if outcome.Duration < 0 {
		outcome.Duration = 0
	}

	// a cancelled run must still leave RUNNING
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkpointWriteTimeout)
	defer cancel()

	if err := r.tracker.store.FinishRun(writeCtx, r.source, outcome); err != nil {
		span.RecordError(err)
		return outcome, fmt.Errorf("finish checkpoint %s: %w", r.source, err)
	}
	r.status = outcome.Status
	return outcome, nil
}
