package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	SourceCoinPaprika  = "coinpaprika"
	coinpaprikaBaseURL = "https://api.coinpaprika.com"
)

// CoinPaprikaTicker is one row of the /v1/tickers response.
type CoinPaprikaTicker struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Rank        int    `json:"rank"`
	LastUpdated string `json:"last_updated"`
	Quotes      map[string]struct {
		Price            *float64 `json:"price"`
		Volume24h        *float64 `json:"volume_24h"`
		MarketCap        *float64 `json:"market_cap"`
		PercentChange24h *float64 `json:"percent_change_24h"`
	} `json:"quotes"`
}

func (*CoinPaprikaTicker) rawPayload() {}

type CoinPaprikaAdapter struct {
	src    *httpSource
	tracer trace.Tracer
	limit  int
	now    func() time.Time
}

func NewCoinPaprikaAdapter(tracer trace.Tracer, cfg SourceConfig) *CoinPaprikaAdapter {
	cfg = cfg.withDefaults(coinpaprikaBaseURL, 100)
	return &CoinPaprikaAdapter{
		src:    newHTTPSource(SourceCoinPaprika, cfg, rate.NewLimiter(rate.Every(6*time.Second), 10)),
		tracer: tracer,
		limit:  cfg.Limit,
		now:    time.Now,
	}
}

func (a *CoinPaprikaAdapter) Name() string { return SourceCoinPaprika }

// Fetch returns the top tickers by rank. The tickers endpoint returns every
// listed coin, so the result is trimmed to the configured limit here.
func (a *CoinPaprikaAdapter) Fetch(ctx context.Context, cursor *time.Time) ([]RawRecord, error) {
	ctx, span := a.tracer.Start(ctx, "coinpaprika.fetch-tickers")
	defer span.End()

	query := url.Values{}
	query.Set("quotes", "USD")

	body, err := a.src.get(ctx, "/v1/tickers", query)
	if err != nil {
		return nil, err
	}

	var tickers []CoinPaprikaTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, a.src.malformed(fmt.Errorf("parse tickers: %w", err))
	}

	// rank 0 means unranked; keep those last
	sort.SliceStable(tickers, func(i, j int) bool {
		ri, rj := tickers[i].Rank, tickers[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	if len(tickers) > a.limit {
		tickers = tickers[:a.limit]
	}
	span.SetAttributes(attribute.Int("tickers", len(tickers)))

	now := a.now().UTC()
	out := make([]RawRecord, 0, len(tickers))
	for i := range tickers {
		t := tickers[i]
		out = append(out, RawRecord{
			Source:     SourceCoinPaprika,
			SourceID:   t.ID,
			IngestedAt: now,
			Payload:    &t,
		})
	}
	return out, nil
}

func (a *CoinPaprikaAdapter) Normalize(raw []RawRecord) ([]domain.NormalizedRecord, int) {
	out := make([]domain.NormalizedRecord, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		t, ok := r.Payload.(*CoinPaprikaTicker)
		if !ok || t == nil {
			skipped++
			continue
		}
		usd, ok := t.Quotes["USD"]
		id := strings.TrimSpace(t.ID)
		if !ok || id == "" || usd.Price == nil || usd.MarketCap == nil {
			skipped++
			continue
		}
		out = append(out, domain.NormalizedRecord{
			SourceRecordID:   id,
			SourceName:       SourceCoinPaprika,
			Symbol:           domain.NormalizeSymbol(t.Symbol),
			Name:             strings.TrimSpace(t.Name),
			CurrentPriceUSD:  *usd.Price,
			MarketCapUSD:     *usd.MarketCap,
			Volume24hUSD:     floatOrZero(usd.Volume24h),
			PercentChange24h: floatOrZero(usd.PercentChange24h),
			LastUpdatedAt:    parseTimestamp(t.LastUpdated),
		})
	}
	return out, skipped
}
