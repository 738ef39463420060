package shared

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate reads a calendar date. Full timestamps are accepted and truncated to their UTC day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := ts.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(DateLayout, value)
}

// ParseInstant reads a full timestamp, kept at its own precision, or a calendar date at UTC
// midnight. dateOnly reports which form was given.
func ParseInstant(value string) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), false, nil
	}
	t, err = time.Parse(DateLayout, value)
	return t, true, err
}
