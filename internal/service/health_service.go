package service

import (
	"context"
	"time"

	"kasparro-backend/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	SystemOK       = "OK"
	SystemDegraded = "Degraded"
	SystemCritical = "Critical"

	DatabaseConnected    = "connected"
	DatabaseDisconnected = "disconnected"
)

type DatabasePinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type SourceHealth struct {
	SourceName           string           `json:"source_name"`
	LastRunTimestamp     *time.Time       `json:"last_run_timestamp"`
	LastRunStatus        domain.RunStatus `json:"last_run_status"`
	LastProcessedRecords int              `json:"last_processed_records"`
	IsUpToDate           bool             `json:"is_up_to_date"`
	LastError            string           `json:"last_error,omitempty"`
}

type HealthReport struct {
	DatabaseStatus    string         `json:"database_status"`
	DatabaseLatencyMS *int64         `json:"database_latency_ms"`
	DatabaseError     string         `json:"database_error,omitempty"`
	ETLCheckpoints    []SourceHealth `json:"etl_checkpoints"`
	SystemStatus      string         `json:"system_status"`
	CheckedAt         time.Time      `json:"checked_at"`
}

// HealthService reports store connectivity and per-source pipeline freshness.
type HealthService struct {
	tracer      trace.Tracer
	db          DatabasePinger
	checkpoints CheckpointLister
	sources     []string
	staleAfter  time.Duration
	now         func() time.Time
}

func NewHealthService(tracer trace.Tracer, db DatabasePinger, checkpoints CheckpointLister, sources []string, staleAfter time.Duration) *HealthService {
	return &HealthService{
		tracer:      tracer,
		db:          db,
		checkpoints: checkpoints,
		sources:     sources,
		staleAfter:  staleAfter,
		now:         time.Now,
	}
}

// Check never fails: an unreachable store is reported as Critical.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	ctx, span := s.tracer.Start(ctx, "health-service.check")
	defer span.End()

	now := s.now().UTC()
	report := HealthReport{
		DatabaseStatus: DatabaseConnected,
		ETLCheckpoints: []SourceHealth{},
		CheckedAt:      now,
	}

	latency, err := s.db.Ping(ctx)
	if err != nil {
		report.DatabaseStatus = DatabaseDisconnected
		report.DatabaseError = err.Error()
		report.SystemStatus = SystemCritical
		span.SetAttributes(attribute.String("system_status", report.SystemStatus))
		return report
	}
	ms := latency.Milliseconds()
	report.DatabaseLatencyMS = &ms

	cps, err := s.checkpoints.ListCheckpoints(ctx)
	if err != nil {
		report.DatabaseError = err.Error()
		report.SystemStatus = SystemCritical
		span.SetAttributes(attribute.String("system_status", report.SystemStatus))
		return report
	}

	byName := make(map[string]domain.Checkpoint, len(cps))
	for _, cp := range cps {
		byName[cp.SourceName] = cp
	}
	names := append([]string(nil), s.sources...)
	for _, cp := range cps {
		if !contains(names, cp.SourceName) {
			names = append(names, cp.SourceName)
		}
	}

	healthy := true
	for _, name := range names {
		cp, ok := byName[name]
		if !ok {
			cp = domain.Checkpoint{SourceName: name, LastRunStatus: domain.StatusIdle}
		}
		sh := s.sourceHealth(cp, now)
		if !sh.IsUpToDate {
			healthy = false
		}
		report.ETLCheckpoints = append(report.ETLCheckpoints, sh)
	}

	report.SystemStatus = SystemOK
	if !healthy {
		report.SystemStatus = SystemDegraded
	}
	span.SetAttributes(attribute.String("system_status", report.SystemStatus))
	return report
}

func (s *HealthService) sourceHealth(cp domain.Checkpoint, now time.Time) SourceHealth {
	sh := SourceHealth{
		SourceName:           cp.SourceName,
		LastRunTimestamp:     cp.LastEndTime,
		LastRunStatus:        cp.LastRunStatus,
		LastProcessedRecords: cp.RecordsProcessed,
		LastError:            cp.LastError,
	}
	if sh.LastRunStatus == "" {
		sh.LastRunStatus = domain.StatusIdle
	}
	if cp.LastRunStatus == domain.StatusSuccess && cp.LastEndTime != nil {
		sh.IsUpToDate = s.staleAfter <= 0 || now.Sub(*cp.LastEndTime) <= s.staleAfter
	}
	return sh
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
