package crud

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of date-only fields.
const DateLayout = "2006-01-02"

// inputDateTimeLayout is what an HTML datetime-local input submits.
const inputDateTimeLayout = "2006-01-02T15:04"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	inputDateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// FormatDate renders the calendar date of t as seen in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate reads a wire date. Full timestamps are accepted and keep the
// calendar date of their own offset, so no timezone shift occurs.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}

// FormatDateTime renders t as an RFC 3339 timestamp in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDateTime reads a timestamp. Values without an offset are taken as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: want ISO 8601", s)
}

// InputDate converts a wire value to what a date input expects. Unparseable
// values come back unchanged.
func InputDate(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return FormatDate(t)
}

// InputDateTime converts a wire timestamp to what a datetime-local input
// expects.
func InputDateTime(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return s
	}
	return t.Format(inputDateTimeLayout)
}
