package model

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-offset, second-precision form used in origin
// URLs. It always spells the offset numerically ("+00:00", never "Z").
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// FormatTimestamp renders t for an incremental-sync query.
func FormatTimestamp(t time.Time) string {
	return t.Truncate(time.Second).Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout as well as any RFC 3339 value.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
