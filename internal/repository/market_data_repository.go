package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createNormalizedMarketDataTable = `
CREATE TABLE IF NOT EXISTS normalized_market_data (
    source_record_id     TEXT             NOT NULL,
    source_name          TEXT             NOT NULL,
    symbol               TEXT             NOT NULL,
    name                 TEXT             NOT NULL,
    current_price_usd    DOUBLE PRECISION NOT NULL CHECK (current_price_usd >= 0),
    market_cap_usd       DOUBLE PRECISION NOT NULL CHECK (market_cap_usd >= 0),
    volume_24h_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
    percent_change_24h   DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_updated_at      TIMESTAMPTZ,
    ingestion_timestamp  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
    PRIMARY KEY (source_record_id, source_name)
);

CREATE INDEX IF NOT EXISTS idx_normalized_market_data_market_cap
    ON normalized_market_data (market_cap_usd DESC);

CREATE INDEX IF NOT EXISTS idx_normalized_market_data_symbol
    ON normalized_market_data (symbol);
`

const upsertNormalizedRecord = `
INSERT INTO normalized_market_data (
    source_record_id, source_name, symbol, name, current_price_usd, market_cap_usd,
    volume_24h_usd, percent_change_24h, last_updated_at, ingestion_timestamp
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (source_record_id, source_name) DO UPDATE SET
    symbol = EXCLUDED.symbol,
    name = EXCLUDED.name,
    current_price_usd = EXCLUDED.current_price_usd,
    market_cap_usd = EXCLUDED.market_cap_usd,
    volume_24h_usd = EXCLUDED.volume_24h_usd,
    percent_change_24h = EXCLUDED.percent_change_24h,
    last_updated_at = EXCLUDED.last_updated_at,
    ingestion_timestamp = EXCLUDED.ingestion_timestamp
RETURNING (xmax = 0) AS inserted`

const normalizedColumns = `source_record_id, source_name, symbol, name, current_price_usd, market_cap_usd,
       volume_24h_usd, percent_change_24h, last_updated_at, ingestion_timestamp`

type MarketDataRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewMarketDataRepository(pool PgxPool, tracer trace.Tracer) *MarketDataRepository {
	return &MarketDataRepository{pool: pool, tracer: tracer}
}

func (r *MarketDataRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "market-data-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createNormalizedMarketDataTable)
	return err
}

// UpsertRecords writes one source's batch in a single transaction. Nothing is
// committed unless every row succeeds.
func (r *MarketDataRepository) UpsertRecords(ctx context.Context, source string, records []domain.NormalizedRecord) (domain.UpsertResult, error) {
	var result domain.UpsertResult
	if len(records) == 0 {
		return result, nil
	}

	ctx, span := r.tracer.Start(ctx, "market-data-repo.upsert-records")
	defer span.End()
	span.SetAttributes(attribute.String("source", source), attribute.Int("records", len(records)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertNormalizedRecord,
			rec.SourceRecordID, rec.SourceName, rec.Symbol, rec.Name,
			rec.CurrentPriceUSD, rec.MarketCapUSD, rec.Volume24hUSD, rec.PercentChange24h,
			nullableTime(rec.LastUpdatedAt), rec.IngestionTimestamp,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, rec := range records {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			br.Close()
			return domain.UpsertResult{}, fmt.Errorf("upsert %s: %w", rec.SourceRecordID, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	if err := br.Close(); err != nil {
		return domain.UpsertResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// QueryNormalized returns one page of records ordered by market cap descending,
// plus the total number of rows matching filter.
func (r *MarketDataRepository) QueryNormalized(ctx context.Context, filter domain.MarketDataFilter, limit, offset int) ([]domain.NormalizedRecord, int, error) {
	ctx, span := r.tracer.Start(ctx, "market-data-repo.query-normalized")
	defer span.End()

	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM normalized_market_data`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count: %v", domain.ErrStoreUnavailable, err)
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s
		 FROM normalized_market_data%s
		 ORDER BY market_cap_usd DESC, source_name, source_record_id
		 LIMIT $%d OFFSET $%d`, normalizedColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records := make([]domain.NormalizedRecord, 0, limit)
	for rows.Next() {
		rec, err := scanNormalized(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	span.SetAttributes(attribute.Int("total", total), attribute.Int("returned", len(records)))
	return records, total, nil
}

// TopBySymbol returns the highest market-cap row across sources for symbol.
func (r *MarketDataRepository) TopBySymbol(ctx context.Context, symbol string) (*domain.NormalizedRecord, error) {
	records, _, err := r.QueryNormalized(ctx, domain.MarketDataFilter{Symbol: symbol}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Ping measures a round trip to the store.
func (r *MarketDataRepository) Ping(ctx context.Context) (time.Duration, error) {
	ctx, span := r.tracer.Start(ctx, "market-data-repo.ping")
	defer span.End()

	start := time.Now()
	err := r.pool.Ping(ctx)
	return time.Since(start), err
}

func filterClause(filter domain.MarketDataFilter) (string, []any) {
	var conds []string
	var args []any
	if symbol := domain.NormalizeSymbol(filter.Symbol); symbol != "" {
		args = append(args, symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanNormalized(row pgx.Row) (domain.NormalizedRecord, error) {
	var rec domain.NormalizedRecord
	var updated pgtype.Timestamptz
	if err := row.Scan(
		&rec.SourceRecordID, &rec.SourceName, &rec.Symbol, &rec.Name,
		&rec.CurrentPriceUSD, &rec.MarketCapUSD, &rec.Volume24hUSD, &rec.PercentChange24h,
		&updated, &rec.IngestionTimestamp,
	); err != nil {
		return rec, err
	}
	rec.LastUpdatedAt = timePtr(updated)
	rec.IngestionTimestamp = rec.IngestionTimestamp.UTC()
	return rec, nil
}

func nullableTime(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	v := ts.Time.UTC()
	return &v
}
