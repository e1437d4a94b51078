package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// 24:00 (MinutesPerDay) is valid as the end of a block.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ClockOf returns the wall-clock time of t in its own zone.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay(MinutesSinceMidnight(t))
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS". Seconds are truncated.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &ParseError{Kind: "time", Input: s, Err: errors.New("expected HH:MM")}
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &ParseError{Kind: "time", Input: s, Err: fmt.Errorf("hour: %w", err)}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &ParseError{Kind: "time", Input: s, Err: fmt.Errorf("minute: %w", err)}
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, &ParseError{Kind: "time", Input: s, Err: fmt.Errorf("second: %w", err)}
		}
	}

	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, &ParseError{Kind: "time", Input: s, Err: errors.New("out of range")}
	}
	return NewTimeOfDay(hour, minute), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Format12h renders the time as "hh:mm AM".
func (t TimeOfDay) Format12h() string {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(int(t)%MinutesPerDay) * time.Minute)
	return ref.Format(DisplayTimeLayout)
}

// AddMinutes shifts t by n minutes, wrapping around midnight.
func (t TimeOfDay) AddMinutes(n int) TimeOfDay {
	total := (int(t) + n) % MinutesPerDay
	if total < 0 {
		total += MinutesPerDay
	}
	return TimeOfDay(total)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
