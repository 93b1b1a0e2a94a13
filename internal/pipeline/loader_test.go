package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"kasparro-backend/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestLoaderStampsIngestionTime(t *testing.T) {
	store := newMemStore()
	l := NewLoader(testTracer, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	res, err := l.Load(context.Background(), "coingecko", []domain.NormalizedRecord{rec("coingecko", "bitcoin", "BTC", 1, nil)})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	btc, _ := store.record("coingecko", "bitcoin")
	require.True(t, now.Equal(btc.IngestionTimestamp))
}

func TestLoaderEmptyBatchIsNoop(t *testing.T) {
	store := newMemStore()
	store.upsertErr["coingecko"] = errors.New("should not be called")
	res, err := NewLoader(testTracer, store).Load(context.Background(), "coingecko", nil)
	require.NoError(t, err)
	require.Zero(t, res.Total())
}

func TestLoaderRejectsForeignRecords(t *testing.T) {
	store := newMemStore()
	_, err := NewLoader(testTracer, store).Load(context.Background(), "coingecko", []domain.NormalizedRecord{
		rec("coingecko", "bitcoin", "BTC", 1, nil),
		rec("coincap", "bitcoin", "BTC", 1, nil),
	})
	var le *domain.LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "coingecko", le.Source)
	require.Zero(t, store.count())
}

func TestLoaderWrapsStoreErrors(t *testing.T) {
	store := newMemStore()
	cause := errors.New("unique violation")
	store.upsertErr["coingecko"] = cause

	_, err := NewLoader(testTracer, store).Load(context.Background(), "coingecko", []domain.NormalizedRecord{
		rec("coingecko", "bitcoin", "BTC", 1, nil),
	})
	var le *domain.LoadError
	require.ErrorAs(t, err, &le)
	require.ErrorIs(t, err, cause)
}
