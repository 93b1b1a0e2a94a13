package provider

import (
	"context"
	"time"

	"kasparro-backend/internal/domain"
)

// RawRecord is a provider-native payload as fetched, before normalization.
// It never leaves the adapter boundary except for debug inspection.
type RawRecord struct {
	Source     string     `json:"source"`
	SourceID   string     `json:"source_id"`
	IngestedAt time.Time  `json:"ingested_at"`
	Payload    RawPayload `json:"payload"`
}

// RawPayload is implemented only by the provider-native shapes in this package.
type RawPayload interface {
	rawPayload()
}

// Adapter fetches one provider's records and maps them into the unified shape.
type Adapter interface {
	Name() string
	// Fetch returns the provider's current records. cursor is the source's
	// resume watermark; nil means a full fetch.
	Fetch(ctx context.Context, cursor *time.Time) ([]RawRecord, error)
	// Normalize maps raw records to NormalizedRecord. Records that cannot be
	// mapped are excluded and counted in skipped.
	Normalize(raw []RawRecord) (records []domain.NormalizedRecord, skipped int)
}

// SourceConfig holds per-provider request shaping.
type SourceConfig struct {
	BaseURL   string
	APIKey    string
	Limit     int
	UserAgent string
}

const defaultUserAgent = "kasparro-backend/1.0"

func (c SourceConfig) withDefaults(baseURL string, limit int) SourceConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Limit <= 0 {
		c.Limit = limit
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}
