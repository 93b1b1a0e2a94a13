package domain

import "time"

type RunStatus string

const (
	StatusIdle    RunStatus = "IDLE"
	StatusRunning RunStatus = "RUNNING"
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailure RunStatus = "FAILURE"
)

func (s RunStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// IsTerminal reports whether a run has finished in this status.
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// CanTransition reports whether a checkpoint may move from s to next.
// A run starts from any non-running state and ends in SUCCESS or FAILURE.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch next {
	case StatusRunning:
		return s == "" || s == StatusIdle || s.IsTerminal()
	case StatusSuccess, StatusFailure:
		return s == StatusRunning
	}
	return false
}

// Checkpoint is the singleton per-source record of the latest pipeline run.
type Checkpoint struct {
	SourceName              string     `json:"source_name"`
	LastSuccessfulTimestamp *time.Time `json:"last_successful_timestamp"`
	LastRunStatus           RunStatus  `json:"last_run_status"`
	RecordsProcessed        int        `json:"records_processed"`
	DurationMS              int64      `json:"duration_ms"`
	LastStartTime           *time.Time `json:"last_start_time"`
	LastEndTime             *time.Time `json:"last_end_time"`

	TotalRecordsProcessed int64      `json:"total_records_processed"`
	RunCount              int64      `json:"run_count"`
	SuccessCount          int64      `json:"success_count"`
	TotalDurationMS       int64      `json:"total_duration_ms"`
	LastSuccessAt         *time.Time `json:"last_success_at"`
	LastFailureAt         *time.Time `json:"last_failure_at"`
	LastError             string     `json:"last_error,omitempty"`
}

// Watermark is the resume cursor handed to the source's adapter on the next run.
func (c *Checkpoint) Watermark() *time.Time {
	if c == nil {
		return nil
	}
	return c.LastSuccessfulTimestamp
}

// RunOutcome is what a finished run writes into its source's checkpoint.
type RunOutcome struct {
	Status           RunStatus
	RecordsProcessed int
	Duration         time.Duration
	EndTime          time.Time
	Watermark        *time.Time
	Error            string
}

// SourceStats is the per-source run summary derived from a checkpoint.
type SourceStats struct {
	SourceName            string     `json:"source_name"`
	LastSuccessfulRun     *time.Time `json:"last_successful_run"`
	LastFailedRun         *time.Time `json:"last_failed_run"`
	TotalRecordsProcessed int64      `json:"total_records_processed"`
	AvgRunDurationSeconds float64    `json:"avg_run_duration_seconds"`
	SuccessRate           float64    `json:"success_rate"`
	LastRunStatus         RunStatus  `json:"last_run_status"`
	Watermark             *time.Time `json:"watermark"`
}

func StatsFromCheckpoint(c Checkpoint) SourceStats {
	stats := SourceStats{
		SourceName:            c.SourceName,
		LastSuccessfulRun:     c.LastSuccessAt,
		LastFailedRun:         c.LastFailureAt,
		TotalRecordsProcessed: c.TotalRecordsProcessed,
		LastRunStatus:         c.LastRunStatus,
		Watermark:             c.LastSuccessfulTimestamp,
	}
	if c.RunCount > 0 {
		stats.AvgRunDurationSeconds = float64(c.TotalDurationMS) / float64(c.RunCount) / 1000.0
		stats.SuccessRate = float64(c.SuccessCount) / float64(c.RunCount)
	}
	return stats
}
