package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/provider"
	"kasparro-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubMarketData struct {
	page      service.Page
	err       error
	gotFilter domain.MarketDataFilter
	gotLimit  int
	gotOffset int
}

func (s *stubMarketData) Query(_ context.Context, filter domain.MarketDataFilter, limit, offset int) (service.Page, error) {
	s.gotFilter, s.gotLimit, s.gotOffset = filter, limit, offset
	return s.page, s.err
}

type stubHealth struct{ report service.HealthReport }

func (s stubHealth) Check(context.Context) service.HealthReport { return s.report }

type stubStats struct {
	stats []domain.SourceStats
	cps   []domain.Checkpoint
	err   error
}

func (s stubStats) Stats(context.Context) ([]domain.SourceStats, error) { return s.stats, s.err }

func (s stubStats) Checkpoints(context.Context) ([]domain.Checkpoint, error) { return s.cps, s.err }

type stubETL struct {
	result    domain.RunResult
	err       error
	gotCtxErr chan error
}

func (s stubETL) Run(ctx context.Context) (domain.RunResult, error) {
	if s.gotCtxErr != nil {
		s.gotCtxErr <- ctx.Err()
	}
	return s.result, s.err
}

type stubAdapter struct {
	raw []provider.RawRecord
	err error
}

func (s stubAdapter) Name() string { return "coingecko" }

func (s stubAdapter) Fetch(context.Context, *time.Time) ([]provider.RawRecord, error) {
	return s.raw, s.err
}

func (s stubAdapter) Normalize([]provider.RawRecord) ([]domain.NormalizedRecord, int) { return nil, 0 }

type stubAdapters map[string]provider.Adapter

func (s stubAdapters) Adapter(source string) (provider.Adapter, bool) {
	a, ok := s[source]
	return a, ok
}

func (s stubAdapters) Sources() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

type fixture struct {
	marketData *stubMarketData
	health     stubHealth
	stats      stubStats
	etl        stubETL
	adapters   stubAdapters
}

func (f *fixture) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	if f.marketData == nil {
		f.marketData = &stubMarketData{}
	}
	r := gin.New()
	New(testTracer, f.marketData, f.health, f.stats, f.etl, f.adapters).RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := (&fixture{}).router()

	w := do(r, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if body != "{\"status\":\"healthy\"}\n" && body != "{\"status\":\"healthy\"}" {
		t.Errorf("unexpected body: %s", body)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestGetDataDefaultsAndMetadata(t *testing.T) {
	f := &fixture{marketData: &stubMarketData{page: service.Page{
		Records: []domain.NormalizedRecord{{SourceRecordID: "bitcoin", SourceName: "coingecko", Symbol: "BTC"}},
		Total:   42,
	}}}
	r := f.router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/data", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp DataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Metadata.RequestID != "req-1" || resp.Metadata.TotalRecords != 42 || resp.Metadata.Limit != 10 || resp.Metadata.Offset != 0 {
		t.Fatalf("unexpected metadata: %+v", resp.Metadata)
	}
	if v, ok := resp.Metadata.FilterApplied["symbol"]; !ok || v != nil {
		t.Fatalf("expected null symbol filter, got %+v", resp.Metadata.FilterApplied)
	}
	if len(resp.Data) != 1 || resp.Data[0].Symbol != "BTC" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestGetDataPassesFilterAndPage(t *testing.T) {
	f := &fixture{marketData: &stubMarketData{page: service.Page{Records: []domain.NormalizedRecord{}, Total: 0}}}
	r := f.router()

	w := do(r, "GET", "/api/data?limit=5&offset=20&symbol=eth")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.marketData.gotFilter.Symbol != "ETH" || f.marketData.gotLimit != 5 || f.marketData.gotOffset != 20 {
		t.Fatalf("unexpected query args: %+v", f.marketData)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	data, ok := resp["data"].([]any)
	if !ok || len(data) != 0 {
		t.Fatalf("expected empty data array, got %v", resp["data"])
	}
}

func TestGetDataRejectsInvalidParams(t *testing.T) {
	r := (&fixture{}).router()

	for _, q := range []string{"limit=0", "limit=101", "limit=abc", "offset=-1", "offset=x"} {
		w := do(r, "GET", "/api/data?"+q)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestGetDataStoreUnavailable(t *testing.T) {
	f := &fixture{marketData: &stubMarketData{err: fmt.Errorf("%w: refused", domain.ErrStoreUnavailable)}}
	w := do(f.router(), "GET", "/api/data")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetHealthStatusCodes(t *testing.T) {
	f := &fixture{health: stubHealth{report: service.HealthReport{SystemStatus: service.SystemDegraded}}}
	if w := do(f.router(), "GET", "/api/health"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 when degraded, got %d", w.Code)
	}

	f = &fixture{health: stubHealth{report: service.HealthReport{SystemStatus: service.SystemCritical}}}
	if w := do(f.router(), "GET", "/api/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when critical, got %d", w.Code)
	}
}

func TestGetStatsAndCheckpoints(t *testing.T) {
	f := &fixture{stats: stubStats{
		stats: []domain.SourceStats{{SourceName: "coingecko", SuccessRate: 1}},
		cps:   []domain.Checkpoint{{SourceName: "coingecko", LastRunStatus: domain.StatusSuccess}},
	}}
	r := f.router()

	w := do(r, "GET", "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats []domain.SourceStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil || len(stats) != 1 {
		t.Fatalf("unexpected stats body: %s", w.Body.String())
	}

	w = do(r, "GET", "/api/checkpoints")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	f = &fixture{stats: stubStats{err: domain.ErrStoreUnavailable}}
	if w := do(f.router(), "GET", "/api/stats"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRunETL(t *testing.T) {
	f := &fixture{etl: stubETL{result: domain.RunResult{Sources: []domain.SourceResult{
		{Source: "coingecko", Status: domain.StatusSuccess, Inserted: 3},
		{Source: "coincap", Status: domain.StatusFailure, ErrorKind: "timeout"},
	}}}}
	w := do(f.router(), "POST", "/api/etl/run")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Upserted  int `json:"upserted"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Succeeded != 1 || body.Failed != 1 || body.Upserted != 3 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	f = &fixture{etl: stubETL{err: service.ErrRunInProgress}}
	if w := do(f.router(), "POST", "/api/etl/run"); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRunETLOutlivesClientDisconnect(t *testing.T) {
	gotCtxErr := make(chan error, 1)
	f := &fixture{etl: stubETL{gotCtxErr: gotCtxErr}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/etl/run", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	f.router().ServeHTTP(w, req)

	if err := <-gotCtxErr; err != nil {
		t.Fatalf("expected run context to survive the request, got %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetRawSource(t *testing.T) {
	f := &fixture{adapters: stubAdapters{
		"coingecko": stubAdapter{raw: []provider.RawRecord{{Source: "coingecko", SourceID: "bitcoin"}}},
		"coincap":   stubAdapter{err: &domain.FetchError{Kind: domain.FetchTimeout, Err: errors.New("deadline")}},
	}}
	r := f.router()

	w := do(r, "GET", "/api/sources/CoinGecko/raw")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(r, "GET", "/api/sources/nope/raw"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, "GET", "/api/sources/coincap/raw"); w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	r := (&fixture{}).router()
	a := do(r, "GET", "/api/status").Header().Get(RequestIDHeader)
	b := do(r, "GET", "/api/status").Header().Get(RequestIDHeader)
	if a == "" || a == b {
		t.Fatalf("expected distinct generated ids, got %q and %q", a, b)
	}
}
