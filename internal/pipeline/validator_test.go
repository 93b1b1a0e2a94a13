package pipeline

import (
	"math"
	"testing"

	"kasparro-backend/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestValidateRecord(t *testing.T) {
	base := rec("coingecko", "bitcoin", "BTC", 50000, nil)

	cases := []struct {
		name   string
		mutate func(*domain.NormalizedRecord)
		field  string
	}{
		{"valid", func(*domain.NormalizedRecord) {}, ""},
		{"zero price allowed", func(r *domain.NormalizedRecord) { r.CurrentPriceUSD = 0 }, ""},
		{"negative change allowed", func(r *domain.NormalizedRecord) { r.PercentChange24h = -12.5 }, ""},
		{"missing id", func(r *domain.NormalizedRecord) { r.SourceRecordID = " " }, "source_record_id"},
		{"missing source", func(r *domain.NormalizedRecord) { r.SourceName = "" }, "source_name"},
		{"missing symbol", func(r *domain.NormalizedRecord) { r.Symbol = "" }, "symbol"},
		{"missing name", func(r *domain.NormalizedRecord) { r.Name = "" }, "name"},
		{"negative price", func(r *domain.NormalizedRecord) { r.CurrentPriceUSD = -1 }, "current_price_usd"},
		{"nan price", func(r *domain.NormalizedRecord) { r.CurrentPriceUSD = math.NaN() }, "current_price_usd"},
		{"negative market cap", func(r *domain.NormalizedRecord) { r.MarketCapUSD = -5 }, "market_cap_usd"},
		{"infinite volume", func(r *domain.NormalizedRecord) { r.Volume24hUSD = math.Inf(1) }, "volume_24h_usd"},
		{"nan change", func(r *domain.NormalizedRecord) { r.PercentChange24h = math.NaN() }, "percent_change_24h"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			err := ValidateRecord(r)
			if tc.field == "" {
				require.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			require.Equal(t, tc.field, err.Field)
		})
	}
}

func TestValidatorDedupesKeepingLast(t *testing.T) {
	first := rec("coingecko", "bitcoin", "BTC", 1, nil)
	second := rec("coingecko", "bitcoin", "BTC", 2, nil)
	other := rec("coingecko", "ethereum", "ETH", 3, nil)

	valid, rejected := Validator{}.Validate([]domain.NormalizedRecord{first, other, second})
	require.Len(t, valid, 2)
	require.Len(t, rejected, 1)
	require.Equal(t, 2.0, valid[0].CurrentPriceUSD)
	require.Equal(t, "ethereum", valid[1].SourceRecordID)
}
