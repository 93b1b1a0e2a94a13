package domain

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks read-path failures caused by the store itself rather
// than by an empty result.
var ErrStoreUnavailable = errors.New("store unavailable")

type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchUnreachable FetchErrorKind = "unreachable"
	FetchRateLimited FetchErrorKind = "rate_limited"
	FetchMalformed   FetchErrorKind = "malformed"
)

// FetchError is a recoverable, per-adapter extraction failure. It is retried on
// the next scheduled run, never within the same run.
type FetchError struct {
	Source     string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s fetch %s", e.Source, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// AsFetchError returns err as a *FetchError attributed to source. Errors that are
// not already typed are reported as unreachable.
func AsFetchError(source string, err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Source == "" {
			fe.Source = source
		}
		return fe
	}
	return &FetchError{Source: source, Kind: FetchUnreachable, Err: err}
}

// ValidationError describes why a single record was rejected.
type ValidationError struct {
	SourceRecordID string
	Field          string
	Reason         string
}

func (e *ValidationError) Error() string {
	if e.SourceRecordID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("record %s: invalid %s: %s", e.SourceRecordID, e.Field, e.Reason)
}

// LoadError is a per-source batch failure; the batch is rolled back.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at process start.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}
