package pipeline

import (
	"math"
	"strings"

	"kasparro-backend/internal/domain"
)

// Validator enforces the unified schema on adapter output before load.
type Validator struct{}

// Validate returns the records that satisfy the schema and the reasons the rest
// were dropped. A key repeated within one batch keeps its last occurrence.
func (Validator) Validate(records []domain.NormalizedRecord) ([]domain.NormalizedRecord, []*domain.ValidationError) {
	var rejected []*domain.ValidationError
	valid := make([]domain.NormalizedRecord, 0, len(records))
	index := make(map[domain.RecordKey]int, len(records))

	for _, r := range records {
		if verr := ValidateRecord(r); verr != nil {
			rejected = append(rejected, verr)
			continue
		}
		if i, dup := index[r.Key()]; dup {
			rejected = append(rejected, &domain.ValidationError{
				SourceRecordID: valid[i].SourceRecordID,
				Field:          "source_record_id",
				Reason:         "duplicate key in batch",
			})
			valid[i] = r
			continue
		}
		index[r.Key()] = len(valid)
		valid = append(valid, r)
	}
	return valid, rejected
}

// ValidateRecord checks required fields and numeric ranges of a single record.
func ValidateRecord(r domain.NormalizedRecord) *domain.ValidationError {
	invalid := func(field, reason string) *domain.ValidationError {
		return &domain.ValidationError{SourceRecordID: r.SourceRecordID, Field: field, Reason: reason}
	}

	switch {
	case strings.TrimSpace(r.SourceRecordID) == "":
		return invalid("source_record_id", "must not be empty")
	case strings.TrimSpace(r.SourceName) == "":
		return invalid("source_name", "must not be empty")
	case strings.TrimSpace(r.Symbol) == "":
		return invalid("symbol", "must not be empty")
	case strings.TrimSpace(r.Name) == "":
		return invalid("name", "must not be empty")
	}

	if !finite(r.CurrentPriceUSD) {
		return invalid("current_price_usd", "must be a finite number")
	}
	if r.CurrentPriceUSD < 0 {
		return invalid("current_price_usd", "must be >= 0")
	}
	if !finite(r.MarketCapUSD) {
		return invalid("market_cap_usd", "must be a finite number")
	}
	if r.MarketCapUSD < 0 {
		return invalid("market_cap_usd", "must be >= 0")
	}
	if !finite(r.Volume24hUSD) {
		return invalid("volume_24h_usd", "must be a finite number")
	}
	if !finite(r.PercentChange24h) {
		return invalid("percent_change_24h", "must be a finite number")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
