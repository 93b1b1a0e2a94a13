package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	SourceCoinGecko     = "coingecko"
	coingeckoBaseURL    = "https://api.coingecko.com/api/v3"
	coingeckoMaxPerPage = 250
)

// CoinGeckoMarket is one row of the /coins/markets response.
type CoinGeckoMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	LastUpdated              string   `json:"last_updated"`
}

func (*CoinGeckoMarket) rawPayload() {}

// CoinGeckoAdapter reads the top markets by capitalization from CoinGecko.
type CoinGeckoAdapter struct {
	src    *httpSource
	tracer trace.Tracer
	limit  int
	now    func() time.Time
}

// NewCoinGeckoAdapter creates an adapter limited to 8 requests per minute
// (one token every 7.5 seconds), within the public API budget.
func NewCoinGeckoAdapter(tracer trace.Tracer, cfg SourceConfig) *CoinGeckoAdapter {
	cfg = cfg.withDefaults(coingeckoBaseURL, 100)
	if cfg.Limit > coingeckoMaxPerPage {
		cfg.Limit = coingeckoMaxPerPage
	}
	src := newHTTPSource(SourceCoinGecko, cfg, rate.NewLimiter(rate.Every(7500*time.Millisecond), 8))
	if cfg.APIKey != "" {
		src.headers.Set("x-cg-demo-api-key", cfg.APIKey)
	}
	return &CoinGeckoAdapter{src: src, tracer: tracer, limit: cfg.Limit, now: time.Now}
}

func (a *CoinGeckoAdapter) Name() string { return SourceCoinGecko }

// Fetch pulls a single page ordered by market cap. The markets endpoint has no
// "since" filter, so the cursor is applied by the caller after normalization.
func (a *CoinGeckoAdapter) Fetch(ctx context.Context, cursor *time.Time) ([]RawRecord, error) {
	ctx, span := a.tracer.Start(ctx, "coingecko.fetch-markets")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", a.limit))

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(a.limit))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	body, err := a.src.get(ctx, "/coins/markets", query)
	if err != nil {
		return nil, err
	}

	var markets []CoinGeckoMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, a.src.malformed(fmt.Errorf("parse markets: %w", err))
	}

	now := a.now().UTC()
	out := make([]RawRecord, 0, len(markets))
	for i := range markets {
		m := markets[i]
		out = append(out, RawRecord{
			Source:     SourceCoinGecko,
			SourceID:   m.ID,
			IngestedAt: now,
			Payload:    &m,
		})
	}
	return out, nil
}

func (a *CoinGeckoAdapter) Normalize(raw []RawRecord) ([]domain.NormalizedRecord, int) {
	out := make([]domain.NormalizedRecord, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		m, ok := r.Payload.(*CoinGeckoMarket)
		if !ok || m == nil {
			skipped++
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" || m.CurrentPrice == nil || m.MarketCap == nil {
			skipped++
			continue
		}
		out = append(out, domain.NormalizedRecord{
			SourceRecordID:   id,
			SourceName:       SourceCoinGecko,
			Symbol:           domain.NormalizeSymbol(m.Symbol),
			Name:             strings.TrimSpace(m.Name),
			CurrentPriceUSD:  *m.CurrentPrice,
			MarketCapUSD:     *m.MarketCap,
			Volume24hUSD:     floatOrZero(m.TotalVolume),
			PercentChange24h: floatOrZero(m.PriceChangePercentage24h),
			LastUpdatedAt:    parseTimestamp(m.LastUpdated),
		})
	}
	return out, skipped
}
