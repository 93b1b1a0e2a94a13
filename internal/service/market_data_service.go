package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"kasparro-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	generationKey = "marketdata:generation"
)

var ErrInvalidPage = errors.New("invalid page")

type MarketDataStore interface {
	QueryNormalized(ctx context.Context, filter domain.MarketDataFilter, limit, offset int) ([]domain.NormalizedRecord, int, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Page is one slice of the normalized table.
type Page struct {
	Records []domain.NormalizedRecord `json:"records"`
	Total   int                       `json:"total"`
}

// MarketDataService serves paginated reads and keeps a short-lived page cache.
// Cached pages are keyed by a generation counter that the pipeline bumps after
// every load, so a stale page is never served after new data lands.
type MarketDataService struct {
	tracer trace.Tracer
	store  MarketDataStore
	redis  RedisClient
	ttl    time.Duration
}

func NewMarketDataService(tracer trace.Tracer, store MarketDataStore, redisClient RedisClient, ttl time.Duration) *MarketDataService {
	return &MarketDataService{tracer: tracer, store: store, redis: redisClient, ttl: ttl}
}

// ValidatePage checks limit and offset bounds.
func ValidatePage(limit, offset int) error {
	if limit < 1 || limit > MaxPageLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, MaxPageLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrInvalidPage)
	}
	return nil
}

// Query returns records ordered by market cap descending and the total count
// for filter. Store failures match domain.ErrStoreUnavailable.
func (s *MarketDataService) Query(ctx context.Context, filter domain.MarketDataFilter, limit, offset int) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "market-data-service.query")
	defer span.End()

	if err := ValidatePage(limit, offset); err != nil {
		return Page{}, err
	}
	filter.Symbol = domain.NormalizeSymbol(filter.Symbol)

	key := ""
	if s.cacheEnabled() {
		key = s.pageKey(ctx, filter, limit, offset)
		if page, ok := s.getPage(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return page, nil
		}
	}

	records, total, err := s.store.QueryNormalized(ctx, filter, limit, offset)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return Page{}, err
	}
	if records == nil {
		records = []domain.NormalizedRecord{}
	}
	page := Page{Records: records, Total: total}

	if key != "" {
		if err := s.setPage(ctx, key, page); err != nil {
			log.Printf("redis page cache write error: %v", err)
		}
	}
	return page, nil
}

// TopBySymbol returns the highest market-cap record for symbol across sources,
// or nil when none exists.
func (s *MarketDataService) TopBySymbol(ctx context.Context, symbol string) (*domain.NormalizedRecord, error) {
	page, err := s.Query(ctx, domain.MarketDataFilter{Symbol: symbol}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	return &page.Records[0], nil
}

// Invalidate drops every cached page by moving to a new generation.
func (s *MarketDataService) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Incr(ctx, generationKey).Err()
}

func (s *MarketDataService) cacheEnabled() bool {
	return s.redis != nil && s.ttl > 0
}

func (s *MarketDataService) pageKey(ctx context.Context, filter domain.MarketDataFilter, limit, offset int) string {
	gen, err := s.redis.Get(ctx, generationKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis generation read error: %v", err)
		}
		gen = "0"
	}
	return "marketdata:" + gen + ":" + filter.Symbol + ":" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
}

func (s *MarketDataService) getPage(ctx context.Context, key string) (Page, bool) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis page cache read error: %v", err)
		}
		return Page{}, false
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return Page{}, false
	}
	return page, true
}

func (s *MarketDataService) setPage(ctx context.Context, key string, page Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, s.ttl).Err()
}
