package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const DefaultAdapterTimeout = 10 * time.Second

// SourceBatch is one adapter's normalized output for a run.
type SourceBatch struct {
	Records   []domain.NormalizedRecord
	Fetched   int
	Skipped   int
	Unchanged int
	Duration  time.Duration
}

// ExtractResult splits a fan-out into per-source successes and failures.
// Every registered source appears in exactly one of the two maps.
type ExtractResult struct {
	Succeeded map[string]SourceBatch
	Failed    map[string]*domain.FetchError
}

// Coordinator runs every adapter concurrently with its own deadline.
type Coordinator struct {
	tracer   trace.Tracer
	adapters []provider.Adapter
	timeout  time.Duration
}

func NewCoordinator(tracer trace.Tracer, adapters []provider.Adapter, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	return &Coordinator{tracer: tracer, adapters: adapters, timeout: timeout}
}

// Sources returns the registered source names in registration order.
func (c *Coordinator) Sources() []string {
	names := make([]string, 0, len(c.adapters))
	for _, a := range c.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Adapter looks up a registered adapter by source name.
func (c *Coordinator) Adapter(source string) (provider.Adapter, bool) {
	for _, a := range c.adapters {
		if a.Name() == source {
			return a, true
		}
	}
	return nil, false
}

type extractOutcome struct {
	source string
	batch  SourceBatch
	err    *domain.FetchError
}

// Extract fetches and normalizes every source and waits for all of them. It never
// fails as a whole: a source that errors, times out or panics is reported in
// Failed while the others proceed.
func (c *Coordinator) Extract(ctx context.Context, cursors map[string]*time.Time) ExtractResult {
	ctx, span := c.tracer.Start(ctx, "coordinator.extract")
	defer span.End()
	span.SetAttributes(attribute.Int("adapters", len(c.adapters)))

	outcomes := make([]extractOutcome, len(c.adapters))
	var g errgroup.Group
	for i, a := range c.adapters {
		g.Go(func() error {
			outcomes[i] = c.extractOne(ctx, a, cursors[a.Name()])
			return nil
		})
	}
	_ = g.Wait()

	result := ExtractResult{
		Succeeded: make(map[string]SourceBatch, len(outcomes)),
		Failed:    make(map[string]*domain.FetchError),
	}
	for _, o := range outcomes {
		if o.err != nil {
			result.Failed[o.source] = o.err
			continue
		}
		result.Succeeded[o.source] = o.batch
	}
	span.SetAttributes(
		attribute.Int("succeeded", len(result.Succeeded)),
		attribute.Int("failed", len(result.Failed)),
	)
	return result
}

type fetchReply struct {
	raw []provider.RawRecord
	err error
}

func (c *Coordinator) extractOne(parent context.Context, a provider.Adapter, cursor *time.Time) extractOutcome {
	source := a.Name()
	start := time.Now()

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "coordinator.extract-source")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	// The fetch runs on its own goroutine so an adapter that ignores its context
	// still cannot hold the join past its deadline.
	replies := make(chan fetchReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- fetchReply{err: &domain.FetchError{
					Source: source,
					Kind:   domain.FetchMalformed,
					Err:    fmt.Errorf("adapter panic: %v", r),
				}}
			}
		}()
		raw, err := a.Fetch(ctx, cursor)
		replies <- fetchReply{raw: raw, err: err}
	}()

	var reply fetchReply
	select {
	case reply = <-replies:
	case <-ctx.Done():
		reply.err = ctx.Err()
	}

	if reply.err != nil {
		fe := domain.AsFetchError(source, reply.err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			fe.Kind = domain.FetchTimeout
		}
		span.RecordError(fe)
		log.Printf("extract %s failed kind=%s: %v", source, fe.Kind, fe)
		return extractOutcome{source: source, err: fe}
	}

	records, skipped, err := normalizeSafely(a, reply.raw)
	if err != nil {
		fe := &domain.FetchError{Source: source, Kind: domain.FetchMalformed, Err: err}
		span.RecordError(fe)
		log.Printf("extract %s failed kind=%s: %v", source, fe.Kind, fe)
		return extractOutcome{source: source, err: fe}
	}
	fresh, unchanged := newerThan(records, cursor)

	batch := SourceBatch{
		Records:   fresh,
		Fetched:   len(reply.raw),
		Skipped:   skipped,
		Unchanged: unchanged,
		Duration:  time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("fetched", batch.Fetched),
		attribute.Int("skipped", batch.Skipped),
		attribute.Int("unchanged", batch.Unchanged),
	)
	return extractOutcome{source: source, batch: batch}
}

func normalizeSafely(a provider.Adapter, raw []provider.RawRecord) (records []domain.NormalizedRecord, skipped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalize panic: %v", r)
		}
	}()
	records, skipped = a.Normalize(raw)
	return records, skipped, nil
}

// newerThan drops records whose freshness marker is not after cursor. Records
// without a marker are always kept. cursor is the source-wide watermark, so a
// record that moved since its last load but still trails the source's newest
// record is dropped as well.
func newerThan(records []domain.NormalizedRecord, cursor *time.Time) ([]domain.NormalizedRecord, int) {
	if cursor == nil || cursor.IsZero() {
		return records, 0
	}
	out := records[:0:0]
	dropped := 0
	for _, r := range records {
		if r.LastUpdatedAt != nil && !r.LastUpdatedAt.After(*cursor) {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}
