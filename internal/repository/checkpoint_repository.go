package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kasparro-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createCheckpointsTable = `
CREATE TABLE IF NOT EXISTS etl_checkpoints (
    source_name                TEXT        PRIMARY KEY,
    last_successful_timestamp  TIMESTAMPTZ,
    last_run_status            TEXT        NOT NULL DEFAULT 'IDLE'
        CHECK (last_run_status IN ('IDLE', 'RUNNING', 'SUCCESS', 'FAILURE')),
    records_processed          INTEGER     NOT NULL DEFAULT 0,
    duration_ms                BIGINT      NOT NULL DEFAULT 0,
    last_start_time            TIMESTAMPTZ,
    last_end_time              TIMESTAMPTZ,
    total_records_processed    BIGINT      NOT NULL DEFAULT 0,
    run_count                  BIGINT      NOT NULL DEFAULT 0,
    success_count              BIGINT      NOT NULL DEFAULT 0,
    total_duration_ms          BIGINT      NOT NULL DEFAULT 0,
    last_success_at            TIMESTAMPTZ,
    last_failure_at            TIMESTAMPTZ,
    last_error                 TEXT
);
`

const checkpointColumns = `source_name, last_successful_timestamp, last_run_status, records_processed, duration_ms,
       last_start_time, last_end_time, total_records_processed, run_count, success_count,
       total_duration_ms, last_success_at, last_failure_at, last_error`

// The watermark only moves on SUCCESS and never backwards; GREATEST skips NULLs.
const finishCheckpointRun = `
UPDATE etl_checkpoints SET
    last_run_status = $2,
    records_processed = $3,
    duration_ms = $4,
    last_end_time = $5,
    last_successful_timestamp = CASE WHEN $2 = 'SUCCESS'
        THEN GREATEST(last_successful_timestamp, $6)
        ELSE last_successful_timestamp END,
    total_records_processed = total_records_processed + $3,
    run_count = run_count + 1,
    success_count = success_count + CASE WHEN $2 = 'SUCCESS' THEN 1 ELSE 0 END,
    total_duration_ms = total_duration_ms + $4,
    last_success_at = CASE WHEN $2 = 'SUCCESS' THEN $5 ELSE last_success_at END,
    last_failure_at = CASE WHEN $2 = 'FAILURE' THEN $5 ELSE last_failure_at END,
    last_error = NULLIF($7, '')
WHERE source_name = $1`

type CheckpointRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCheckpointRepository(pool PgxPool, tracer trace.Tracer) *CheckpointRepository {
	return &CheckpointRepository{pool: pool, tracer: tracer}
}

func (r *CheckpointRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "checkpoint-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createCheckpointsTable)
	return err
}

// GetCheckpoint returns nil without error for a source that has never run.
func (r *CheckpointRepository) GetCheckpoint(ctx context.Context, source string) (*domain.Checkpoint, error) {
	ctx, span := r.tracer.Start(ctx, "checkpoint-repo.get")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	row := r.pool.QueryRow(ctx, `SELECT `+checkpointColumns+` FROM etl_checkpoints WHERE source_name = $1`, source)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *CheckpointRepository) StartRun(ctx context.Context, source string, startedAt time.Time) error {
	ctx, span := r.tracer.Start(ctx, "checkpoint-repo.start-run")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO etl_checkpoints (source_name, last_run_status, last_start_time)
		 VALUES ($1, 'RUNNING', $2)
		 ON CONFLICT (source_name) DO UPDATE SET
		     last_run_status = 'RUNNING',
		     last_start_time = EXCLUDED.last_start_time`,
		source, startedAt.UTC(),
	)
	return err
}

func (r *CheckpointRepository) FinishRun(ctx context.Context, source string, outcome domain.RunOutcome) error {
	ctx, span := r.tracer.Start(ctx, "checkpoint-repo.finish-run")
	defer span.End()
	span.SetAttributes(attribute.String("source", source), attribute.String("status", string(outcome.Status)))

	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finish run %s: status %q is not terminal", source, outcome.Status)
	}

	tag, err := r.pool.Exec(ctx, finishCheckpointRun,
		source,
		string(outcome.Status),
		outcome.RecordsProcessed,
		outcome.Duration.Milliseconds(),
		outcome.EndTime.UTC(),
		nullableTime(outcome.Watermark),
		outcome.Error,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: no checkpoint row", source)
	}
	return nil
}

func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]domain.Checkpoint, error) {
	ctx, span := r.tracer.Start(ctx, "checkpoint-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+checkpointColumns+` FROM etl_checkpoints ORDER BY source_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkpoints []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

func scanCheckpoint(row pgx.Row) (domain.Checkpoint, error) {
	var (
		cp                        domain.Checkpoint
		status                    string
		watermark, started, ended pgtype.Timestamptz
		lastSuccess, lastFailure  pgtype.Timestamptz
		lastError                 pgtype.Text
	)
	if err := row.Scan(
		&cp.SourceName, &watermark, &status, &cp.RecordsProcessed, &cp.DurationMS,
		&started, &ended, &cp.TotalRecordsProcessed, &cp.RunCount, &cp.SuccessCount,
		&cp.TotalDurationMS, &lastSuccess, &lastFailure, &lastError,
	); err != nil {
		return cp, err
	}
	cp.LastRunStatus = domain.RunStatus(status)
	cp.LastSuccessfulTimestamp = timePtr(watermark)
	cp.LastStartTime = timePtr(started)
	cp.LastEndTime = timePtr(ended)
	cp.LastSuccessAt = timePtr(lastSuccess)
	cp.LastFailureAt = timePtr(lastFailure)
	if lastError.Valid {
		cp.LastError = lastError.String
	}
	return cp, nil
}
