package provider

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// parseOptionalFloat parses a provider number that may be absent or null.
func parseOptionalFloat(v *string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func floatOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// parseTimestamp accepts RFC3339 (with or without fractional seconds).
// Unparseable or empty values yield nil.
func parseTimestamp(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func unixMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
