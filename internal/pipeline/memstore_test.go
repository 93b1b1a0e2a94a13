package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/provider"
)

// memStore mirrors the Postgres repositories closely enough to exercise the
// pipeline end to end.
type memStore struct {
	mu          sync.Mutex
	records     map[domain.RecordKey]domain.NormalizedRecord
	checkpoints map[string]*domain.Checkpoint
	upsertErr   map[string]error
	finishErr   error
	getErr      error
}

func newMemStore() *memStore {
	return &memStore{
		records:     make(map[domain.RecordKey]domain.NormalizedRecord),
		checkpoints: make(map[string]*domain.Checkpoint),
		upsertErr:   make(map[string]error),
	}
}

func (m *memStore) UpsertRecords(ctx context.Context, source string, records []domain.NormalizedRecord) (domain.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.UpsertResult{}, err
	}
	if err := m.upsertErr[source]; err != nil {
		return domain.UpsertResult{}, err
	}
	var res domain.UpsertResult
	for _, r := range records {
		if _, ok := m.records[r.Key()]; ok {
			res.Updated++
		} else {
			res.Inserted++
		}
		m.records[r.Key()] = r
	}
	return res, nil
}

func (m *memStore) GetCheckpoint(_ context.Context, source string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp, ok := m.checkpoints[source]
	if !ok {
		return nil, nil
	}
	out := *cp
	return &out, nil
}

func (m *memStore) StartRun(_ context.Context, source string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[source]
	if !ok {
		cp = &domain.Checkpoint{SourceName: source}
		m.checkpoints[source] = cp
	}
	cp.LastRunStatus = domain.StatusRunning
	cp.LastStartTime = &startedAt
	return nil
}

func (m *memStore) FinishRun(ctx context.Context, source string, o domain.RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// pgx refuses to run statements on a done context
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.finishErr != nil {
		return m.finishErr
	}
	cp := m.checkpoints[source]
	end := o.EndTime
	cp.LastRunStatus = o.Status
	cp.LastEndTime = &end
	cp.DurationMS = o.Duration.Milliseconds()
	cp.RunCount++
	cp.TotalDurationMS += cp.DurationMS
	cp.LastError = o.Error
	cp.RecordsProcessed = o.RecordsProcessed
	cp.TotalRecordsProcessed += int64(o.RecordsProcessed)
	if o.Status == domain.StatusSuccess {
		cp.SuccessCount++
		cp.LastSuccessAt = &end
		if o.Watermark != nil && (cp.LastSuccessfulTimestamp == nil || o.Watermark.After(*cp.LastSuccessfulTimestamp)) {
			w := *o.Watermark
			cp.LastSuccessfulTimestamp = &w
		}
	} else {
		cp.LastFailureAt = &end
	}
	return nil
}

func (m *memStore) ListCheckpoints(context.Context) ([]domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Checkpoint, 0, len(m.checkpoints))
	for _, cp := range m.checkpoints {
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceName < out[j].SourceName })
	return out, nil
}

func (m *memStore) record(source, id string) (domain.NormalizedRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[domain.RecordKey{SourceRecordID: id, SourceName: source}]
	return r, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memStore) checkpoint(source string) domain.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp, ok := m.checkpoints[source]; ok {
		return *cp
	}
	return domain.Checkpoint{}
}

// stubAdapter returns canned records. RawRecord payloads are sealed to the
// provider package, so Normalize hands back the prepared records directly.
type stubAdapter struct {
	name      string
	records   []domain.NormalizedRecord
	skipped   int
	fetchErr  error
	block     bool
	panicIn   string
	onFetch   func()
	gotCursor *time.Time
	mu        sync.Mutex
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context, cursor *time.Time) ([]provider.RawRecord, error) {
	s.mu.Lock()
	s.gotCursor = cursor
	s.mu.Unlock()

	if s.onFetch != nil {
		s.onFetch()
	}
	if s.panicIn == "fetch" {
		panic("boom")
	}
	if s.block {
		// ignores ctx on purpose
		time.Sleep(2 * time.Second)
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	raw := make([]provider.RawRecord, len(s.records)+s.skipped)
	for i := range raw {
		raw[i] = provider.RawRecord{Source: s.name}
	}
	return raw, nil
}

func (s *stubAdapter) Normalize([]provider.RawRecord) ([]domain.NormalizedRecord, int) {
	if s.panicIn == "normalize" {
		panic("bad payload")
	}
	out := make([]domain.NormalizedRecord, len(s.records))
	copy(out, s.records)
	return out, s.skipped
}

func (s *stubAdapter) cursor() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotCursor
}

func rec(source, id, symbol string, price float64, updated *time.Time) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		SourceRecordID:  id,
		SourceName:      source,
		Symbol:          symbol,
		Name:            symbol + " coin",
		CurrentPriceUSD: price,
		MarketCapUSD:    price * 1000,
		LastUpdatedAt:   updated,
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
