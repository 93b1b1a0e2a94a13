package pipeline

import (
	"context"
	"fmt"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordStore persists one source's batch atomically: every record is
// committed or none is.
type RecordStore interface {
	UpsertRecords(ctx context.Context, source string, records []domain.NormalizedRecord) (domain.UpsertResult, error)
}

// Loader upserts validated batches keyed by (source_record_id, source_name).
type Loader struct {
	tracer trace.Tracer
	store  RecordStore
	now    func() time.Time
}

func NewLoader(tracer trace.Tracer, store RecordStore) *Loader {
	return &Loader{tracer: tracer, store: store, now: time.Now}
}

// Load stamps the ingestion time and upserts records for source in one
// transaction. Any failure is returned as a *domain.LoadError.
func (l *Loader) Load(ctx context.Context, source string, records []domain.NormalizedRecord) (domain.UpsertResult, error) {
	ctx, span := l.tracer.Start(ctx, "loader.load")
	defer span.End()
	span.SetAttributes(attribute.String("source", source), attribute.Int("records", len(records)))

	if len(records) == 0 {
		return domain.UpsertResult{}, nil
	}

	ingested := l.now().UTC()
	batch := make([]domain.NormalizedRecord, len(records))
	for i, r := range records {
		if r.SourceName != source {
			return domain.UpsertResult{}, &domain.LoadError{
				Source: source,
				Err:    fmt.Errorf("record %s belongs to source %q", r.SourceRecordID, r.SourceName),
			}
		}
		r.IngestionTimestamp = ingested
		batch[i] = r
	}

	result, err := l.store.UpsertRecords(ctx, source, batch)
	if err != nil {
		span.RecordError(err)
		return domain.UpsertResult{}, &domain.LoadError{Source: source, Err: err}
	}
	span.SetAttributes(attribute.Int("inserted", result.Inserted), attribute.Int("updated", result.Updated))
	return result, nil
}
