package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WireLayout is the timestamp layout sent to the booking API. The offset is
// always written numerically, never as "Z".
const WireLayout = "2006-01-02T15:04:05-07:00"

var zoneOffsets = map[string]string{
	"Asia/Hong_Kong":   "+08:00",
	"UTC":              "+00:00",
	"America/New_York": "-05:00",
	"Europe/London":    "+00:00",
}

// OffsetFor returns the fixed wire offset used for a named zone. Unknown
// zones map to "+00:00".
func OffsetFor(zone string) string {
	if off, ok := zoneOffsets[zone]; ok {
		return off
	}
	return "+00:00"
}

// ParseOffset turns "+08:00", "-0500" or "Z" into a fixed zone.
func ParseOffset(s string) (*time.Location, error) {
	raw := strings.TrimSpace(s)
	if raw == "Z" || strings.EqualFold(raw, "UTC") {
		return time.FixedZone("+00:00", 0), nil
	}
	if len(raw) < 3 || (raw[0] != '+' && raw[0] != '-') {
		return nil, &ParseError{Kind: "offset", Input: s, Err: errors.New("expected ±HH:MM")}
	}

	sign := 1
	if raw[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(raw[1:], ":", "")
	if len(body) != 2 && len(body) != 4 {
		return nil, &ParseError{Kind: "offset", Input: s, Err: errors.New("expected ±HH:MM")}
	}
	hours, err := strconv.Atoi(body[:2])
	if err != nil {
		return nil, &ParseError{Kind: "offset", Input: s, Err: err}
	}
	mins := 0
	if len(body) == 4 {
		if mins, err = strconv.Atoi(body[2:]); err != nil {
			return nil, &ParseError{Kind: "offset", Input: s, Err: err}
		}
	}
	if hours > 14 || mins > 59 {
		return nil, &ParseError{Kind: "offset", Input: s, Err: errors.New("out of range")}
	}

	secs := sign * (hours*3600 + mins*60)
	return time.FixedZone(formatOffset(secs), secs), nil
}

// FixedZoneFor is ParseOffset(OffsetFor(zone)).
func FixedZoneFor(zone string) *time.Location {
	loc, err := ParseOffset(OffsetFor(zone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// WireTimestamp combines a date and a wall-clock time with a fixed offset,
// e.g. "2025-11-04T10:00:00+08:00".
func WireTimestamp(d Date, tod TimeOfDay, offset *time.Location) string {
	if offset == nil {
		offset = time.FixedZone("+00:00", 0)
	}
	return d.At(tod, offset).Format(WireLayout)
}

func formatOffset(secs int) string {
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, (secs%3600)/60)
}
