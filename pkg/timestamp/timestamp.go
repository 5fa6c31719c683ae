// Package timestamp provides Unix-millisecond timestamp handling for
// publication deadlines.
//
// The canonical timestamp format throughout embargo is int64 milliseconds
// since the Unix epoch (UTC). Deadlines arrive on the wire as ISO-8601
// instants with an offset; ParseInstant converts them once at the edge and
// everything downstream compares plain integers.
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set"
//   - Functions handle zero values gracefully, returning appropriate defaults
package timestamp

import (
	"fmt"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ParseInstant parses an ISO-8601 instant with offset (RFC 3339) into Unix
// milliseconds. Returns an error for anything that is not a complete
// timestamp; callers decide whether a malformed instant is fatal or simply
// means "no deadline".
func ParseInstant(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("timestamp: empty instant")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp: parse %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// ToUnixMs converts a time.Time to Unix milliseconds.
// Zero time returns 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to a time.Time in UTC.
// Zero returns the zero time.
func FromUnixMs(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ts).UTC()
}

// Format renders a timestamp as an RFC 3339 string for display and logging.
// Zero returns the empty string.
func Format(ts int64) string {
	if ts == 0 {
		return ""
	}
	return FromUnixMs(ts).Format(time.RFC3339)
}

// Add returns the timestamp advanced by d. Adding to the zero timestamp
// returns zero, preserving "not set".
func Add(ts int64, d time.Duration) int64 {
	if ts == 0 {
		return 0
	}
	return ts + d.Milliseconds()
}
