// Package timeutil holds the calendar and clock arithmetic shared by the
// schedule, slot and validation code. Everything here is pure.
package timeutil

import (
	"strings"
	"time"
)

const (
	// MinutesPerDay is the exclusive upper bound of a minute-of-day value.
	MinutesPerDay = 24 * 60

	// DisplayTimeLayout matches the 12-hour clock used by the booking UI.
	DisplayTimeLayout = "03:04 PM"
	// DisplayDateLayout renders dates like "Tue, 4 Nov 2025".
	DisplayDateLayout = "Mon, 2 Jan 2006"
)

// Layouts accepted for timestamps that carry no offset; they are read in the
// caller's zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ToZonedDateTime parses an ISO-8601 timestamp and returns it expressed in loc.
// Timestamps without an offset are interpreted in loc. A nil loc means UTC.
func ToZonedDateTime(iso string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(iso)
	if s == "" {
		return time.Time{}, &ParseError{Kind: "timestamp", Input: iso}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if lt, lerr := time.ParseInLocation(layout, s, loc); lerr == nil {
			return lt, nil
		}
	}
	return time.Time{}, &ParseError{Kind: "timestamp", Input: iso, Err: err}
}

// MinutesSinceMidnight returns the wall-clock minute of t in its own zone.
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FormatTime renders an ISO timestamp as a local 12-hour clock label.
func FormatTime(iso string, loc *time.Location) (string, error) {
	t, err := ToZonedDateTime(iso, loc)
	if err != nil {
		return "", err
	}
	return t.Format(DisplayTimeLayout), nil
}

// FormatDate renders an ISO timestamp as a local display date.
func FormatDate(iso string, loc *time.Location) (string, error) {
	t, err := ToZonedDateTime(iso, loc)
	if err != nil {
		return "", err
	}
	return t.Format(DisplayDateLayout), nil
}

// TodayIn returns the calendar date of now in loc.
func TodayIn(now time.Time, loc *time.Location) Date {
	return DateOf(now, loc)
}

// IsPastRelativeTo reports whether tod on d is not later than now. The current
// minute counts as past, so a slot starting at 10:00 is closed at 10:00.
func IsPastRelativeTo(d Date, tod TimeOfDay, now time.Time) bool {
	today := DateOf(now, now.Location())
	switch {
	case d.Before(today):
		return true
	case d.After(today):
		return false
	}
	return int(tod) <= MinutesSinceMidnight(now)
}
