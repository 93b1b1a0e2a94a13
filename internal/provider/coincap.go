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
	SourceCoinCap  = "coincap"
	coincapBaseURL = "https://api.coincap.io"
)

// CoinCapAsset is one row of the /v2/assets response. CoinCap encodes every
// number as a string and may send null for any of them.
type CoinCapAsset struct {
	ID                string  `json:"id"`
	Rank              string  `json:"rank"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	PriceUSD          *string `json:"priceUsd"`
	MarketCapUSD      *string `json:"marketCapUsd"`
	VolumeUSD24Hr     *string `json:"volumeUsd24Hr"`
	ChangePercent24Hr *string `json:"changePercent24Hr"`
	// Timestamp is copied from the response envelope.
	Timestamp int64 `json:"timestamp,omitempty"`
}

func (*CoinCapAsset) rawPayload() {}

type CoinCapAdapter struct {
	src    *httpSource
	tracer trace.Tracer
	limit  int
	now    func() time.Time
}

func NewCoinCapAdapter(tracer trace.Tracer, cfg SourceConfig) *CoinCapAdapter {
	cfg = cfg.withDefaults(coincapBaseURL, 100)
	src := newHTTPSource(SourceCoinCap, cfg, rate.NewLimiter(rate.Every(3*time.Second), 10))
	if cfg.APIKey != "" {
		src.headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &CoinCapAdapter{src: src, tracer: tracer, limit: cfg.Limit, now: time.Now}
}

func (a *CoinCapAdapter) Name() string { return SourceCoinCap }

func (a *CoinCapAdapter) Fetch(ctx context.Context, cursor *time.Time) ([]RawRecord, error) {
	ctx, span := a.tracer.Start(ctx, "coincap.fetch-assets")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", a.limit))

	query := url.Values{}
	query.Set("limit", strconv.Itoa(a.limit))

	body, err := a.src.get(ctx, "/v2/assets", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data      []CoinCapAsset `json:"data"`
		Timestamp int64          `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, a.src.malformed(fmt.Errorf("parse assets: %w", err))
	}
	if payload.Data == nil {
		return nil, a.src.malformed(fmt.Errorf("assets response has no data field"))
	}

	now := a.now().UTC()
	out := make([]RawRecord, 0, len(payload.Data))
	for i := range payload.Data {
		asset := payload.Data[i]
		asset.Timestamp = payload.Timestamp
		out = append(out, RawRecord{
			Source:     SourceCoinCap,
			SourceID:   asset.ID,
			IngestedAt: now,
			Payload:    &asset,
		})
	}
	return out, nil
}

func (a *CoinCapAdapter) Normalize(raw []RawRecord) ([]domain.NormalizedRecord, int) {
	out := make([]domain.NormalizedRecord, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		asset, ok := r.Payload.(*CoinCapAsset)
		if !ok || asset == nil {
			skipped++
			continue
		}
		id := strings.TrimSpace(asset.ID)
		price, okPrice := parseOptionalFloat(asset.PriceUSD)
		marketCap, okCap := parseOptionalFloat(asset.MarketCapUSD)
		if id == "" || !okPrice || !okCap {
			skipped++
			continue
		}
		volume, _ := parseOptionalFloat(asset.VolumeUSD24Hr)
		change, _ := parseOptionalFloat(asset.ChangePercent24Hr)
		out = append(out, domain.NormalizedRecord{
			SourceRecordID:   id,
			SourceName:       SourceCoinCap,
			Symbol:           domain.NormalizeSymbol(asset.Symbol),
			Name:             strings.TrimSpace(asset.Name),
			CurrentPriceUSD:  price,
			MarketCapUSD:     marketCap,
			Volume24hUSD:     volume,
			PercentChange24h: change,
			LastUpdatedAt:    unixMillis(asset.Timestamp),
		})
	}
	return out, skipped
}
