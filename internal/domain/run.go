package domain

import "time"

// SourceResult is one source's outcome within a single pipeline run.
type SourceResult struct {
	Source    string        `json:"source"`
	Status    RunStatus     `json:"status"`
	Fetched   int           `json:"fetched"`
	Skipped   int           `json:"skipped"`
	Unchanged int           `json:"unchanged"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Duration  time.Duration `json:"duration_ns"`
	Watermark *time.Time    `json:"watermark,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
}

// RunResult aggregates a single pipeline invocation.
type RunResult struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceResult `json:"sources"`
}

func (r RunResult) Upserted() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Inserted + s.Updated
	}
	return total
}

func (r RunResult) Succeeded() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == StatusSuccess {
			n++
		}
	}
	return n
}

func (r RunResult) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == StatusFailure {
			n++
		}
	}
	return n
}

func (r RunResult) Source(name string) (SourceResult, bool) {
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceResult{}, false
}
