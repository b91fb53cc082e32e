package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339, RFC3339Nano, "2006-01-02 15:04:05" and unix
// seconds. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseTimes parses every element; the first bad one fails the whole batch.
func ParseTimes(ss []string) ([]time.Time, error) {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		t, ok := ParseTime(s)
		if !ok {
			return nil, fmt.Errorf("timestamps[%d]: cannot parse %q", i, s)
		}
		out[i] = t
	}
	return out, nil
}

// TruncateTo rounds t down to the timeframe boundary (1s, 1m, 5m).
// Unknown timeframes truncate to the minute.
func TruncateTo(t time.Time, tf string) time.Time {
	switch tf {
	case "1s":
		return t.Truncate(time.Second)
	case "5m":
		return t.Truncate(5 * time.Minute)
	default:
		return t.Truncate(time.Minute)
	}
}
