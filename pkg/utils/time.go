package utils

import "time"

// FormatTimestamp renders t in UTC RFC3339 with millisecond precision, or ""
// for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseRFC3339 parses a time string in RFC3339 format
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
