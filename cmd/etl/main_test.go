package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kasparro-backend/internal/config"
	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/repository"
	"kasparro-backend/internal/service"

	"github.com/jackc/pgx/v5/pgconn"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type stubPool struct {
	repository.PgxPool
	execErr error
	execs   int
}

func (p *stubPool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	p.execs++
	return pgconn.CommandTag{}, p.execErr
}

func stubETLDeps(t *testing.T, cfg *config.Config, pool *stubPool, storeErr error) {
	t.Helper()
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origOpenStore := openStoreFunc
	origOpenCache := openCacheFunc
	origAdapters := newAdaptersFunc
	t.Cleanup(func() {
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		openStoreFunc = origOpenStore
		openCacheFunc = origOpenCache
		newAdaptersFunc = origAdapters
	})

	loadConfigFunc = func() *config.Config { return cfg }
	initTracerFunc = func(ctx context.Context, name string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	openStoreFunc = func(context.Context, string) (repository.PgxPool, func(), error) {
		if storeErr != nil {
			return nil, nil, storeErr
		}
		return pool, func() {}, nil
	}
	openCacheFunc = func(context.Context, string) (service.RedisClient, func(), error) {
		return nil, nil, errors.New("redis unavailable")
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	stubETLDeps(t, &config.Config{ETLSources: []string{"coingecko"}}, &stubPool{}, nil)

	_, err := run(context.Background())
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunStoreUnreachable(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://example", ETLSources: []string{"coingecko"}}
	stubETLDeps(t, cfg, &stubPool{}, domain.ErrStoreUnavailable)

	if _, err := run(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestRunMigrationFailure(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://example", ETLSources: []string{"coingecko"}}
	stubETLDeps(t, cfg, &stubPool{execErr: errors.New("permission denied")}, nil)

	if _, err := run(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestRunUnknownSource(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://example", ETLSources: []string{"binance"}}
	stubETLDeps(t, cfg, &stubPool{}, nil)

	_, err := run(context.Background())
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "ETL_SOURCES" {
		t.Fatalf("expected ETL_SOURCES configuration error, got %v", err)
	}
}

func TestSummaryLine(t *testing.T) {
	ok := summaryLine(domain.SourceResult{Source: "coingecko", Status: domain.StatusSuccess, Fetched: 10, Inserted: 4, Updated: 6, Duration: time.Second})
	if !strings.HasPrefix(ok, "coingecko status=SUCCESS fetched=10") || strings.Contains(ok, "error=") {
		t.Fatalf("unexpected line: %s", ok)
	}

	failed := summaryLine(domain.SourceResult{Source: "coincap", Status: domain.StatusFailure, ErrorKind: "rate_limited", Error: "coincap fetch rate_limited (status 429)"})
	if !strings.Contains(failed, "kind=rate_limited") || !strings.Contains(failed, `error="coincap fetch rate_limited (status 429)"`) {
		t.Fatalf("unexpected line: %s", failed)
	}
}
