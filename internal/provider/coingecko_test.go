package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func stubTransport(src *httpSource, fn roundTripFunc) {
	src.baseURL = "http://example"
	src.client = &http.Client{Transport: fn}
	src.limiter = rate.NewLimiter(rate.Inf, 1)
}

func TestCoinGeckoFetchMarkets(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, SourceConfig{Limit: 2, APIKey: "demo"})
	stubTransport(adapter.src, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/coins/markets" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		q := req.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("order") != "market_cap_desc" || q.Get("per_page") != "2" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		if req.Header.Get("User-Agent") == "" {
			t.Fatal("expected User-Agent header")
		}
		if req.Header.Get("x-cg-demo-api-key") != "demo" {
			t.Fatalf("expected api key header, got %q", req.Header.Get("x-cg-demo-api-key"))
		}
		return jsonResponse(http.StatusOK, `[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":50000,"market_cap":900000000000,
			 "total_volume":30000000000,"price_change_percentage_24h":1.5,"last_updated":"2025-01-01T00:00:00.000Z"},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3000,"market_cap":360000000000}
		]`), nil
	})

	raw, err := adapter.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 2 || raw[0].SourceID != "bitcoin" || raw[0].Source != SourceCoinGecko {
		t.Fatalf("unexpected raw records: %+v", raw)
	}

	records, skipped := adapter.Normalize(raw)
	if skipped != 0 || len(records) != 2 {
		t.Fatalf("expected 2 records and no skips, got %d/%d", len(records), skipped)
	}
	btc := records[0]
	if btc.Symbol != "BTC" || btc.Name != "Bitcoin" || btc.CurrentPriceUSD != 50000 || btc.Volume24hUSD != 30000000000 {
		t.Fatalf("unexpected btc record: %+v", btc)
	}
	if btc.LastUpdatedAt == nil || !btc.LastUpdatedAt.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last updated: %v", btc.LastUpdatedAt)
	}

	eth := records[1]
	if eth.Volume24hUSD != 0 || eth.PercentChange24h != 0 || eth.LastUpdatedAt != nil {
		t.Fatalf("missing optional fields should default, got %+v", eth)
	}
}

func TestCoinGeckoNormalizeSkipsMissingRequired(t *testing.T) {
	price := 1.0
	raw := []RawRecord{
		{Payload: &CoinGeckoMarket{ID: "no-cap", Symbol: "x", Name: "X", CurrentPrice: &price}},
		{Payload: &CoinGeckoMarket{ID: "", Symbol: "y", Name: "Y", CurrentPrice: &price, MarketCap: &price}},
		{Payload: &CoinPaprikaTicker{ID: "wrong-shape"}},
		{Payload: &CoinGeckoMarket{ID: "ok", Symbol: "ok", Name: "OK", CurrentPrice: &price, MarketCap: &price}},
	}

	adapter := NewCoinGeckoAdapter(testTracer, SourceConfig{})
	records, skipped := adapter.Normalize(raw)
	if skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", skipped)
	}
	if len(records) != 1 || records[0].SourceRecordID != "ok" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestCoinGeckoFetchMalformedBody(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, SourceConfig{})
	stubTransport(adapter.src, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"error":"not a list"}`), nil
	})

	_, err := adapter.Fetch(context.Background(), nil)
	assertFetchKind(t, err, "malformed")
	if !strings.Contains(err.Error(), "coingecko") {
		t.Fatalf("expected source in error, got %v", err)
	}
}

func TestCoinGeckoLimitCapped(t *testing.T) {
	adapter := NewCoinGeckoAdapter(testTracer, SourceConfig{Limit: 1000})
	if adapter.limit != coingeckoMaxPerPage {
		t.Fatalf("expected limit capped to %d, got %d", coingeckoMaxPerPage, adapter.limit)
	}
}
