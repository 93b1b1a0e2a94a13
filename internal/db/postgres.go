package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 5 * time.Second

var (
	newPool  = pgxpool.New
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// Connect opens a pool against dsn and verifies it with a ping. The caller owns
// the returned pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, &domain.ConfigurationError{Field: "DATABASE_URL", Reason: "is required"}
	}

	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres pool: %v", domain.ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pingPool(pingCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", domain.ErrStoreUnavailable, err)
	}

	log.Println("Connected to Postgres")
	return pool, nil
}
