package domain

import (
	"strings"
	"time"
)

// NormalizedRecord is the unified market snapshot shared by every provider.
// (SourceRecordID, SourceName) is the idempotency key.
type NormalizedRecord struct {
	SourceRecordID     string     `json:"source_record_id"`
	SourceName         string     `json:"source_name"`
	Symbol             string     `json:"symbol"`
	Name               string     `json:"name"`
	CurrentPriceUSD    float64    `json:"current_price_usd"`
	MarketCapUSD       float64    `json:"market_cap_usd"`
	Volume24hUSD       float64    `json:"volume_24h_usd"`
	PercentChange24h   float64    `json:"percent_change_24h"`
	LastUpdatedAt      *time.Time `json:"last_updated_at,omitempty"`
	IngestionTimestamp time.Time  `json:"ingestion_timestamp"`
}

// Key returns the composite identity of the record.
func (r NormalizedRecord) Key() RecordKey {
	return RecordKey{SourceRecordID: r.SourceRecordID, SourceName: r.SourceName}
}

type RecordKey struct {
	SourceRecordID string
	SourceName     string
}

type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

func (u UpsertResult) Total() int {
	return u.Inserted + u.Updated
}

// MarketDataFilter narrows queryNormalized results. Empty fields match everything.
type MarketDataFilter struct {
	Symbol string
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MaxLastUpdated returns the latest provider freshness marker in records, or nil
// when none of them carry one.
func MaxLastUpdated(records []NormalizedRecord) *time.Time {
	var max *time.Time
	for i := range records {
		ts := records[i].LastUpdatedAt
		if ts == nil || ts.IsZero() {
			continue
		}
		if max == nil || ts.After(*max) {
			v := ts.UTC()
			max = &v
		}
	}
	return max
}
