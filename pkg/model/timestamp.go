package model

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw timestamp from upstream data. Values that do not parse
// return nil and are treated as absent downstream.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// HasTimestamp reports whether the incident carries a usable timestamp.
func (i Incident) HasTimestamp() bool {
	return i.Timestamp != nil && !i.Timestamp.IsZero()
}
