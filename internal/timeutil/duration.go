package timeutil

import (
	"regexp"
	"strconv"
)

// DefaultDurationMinutes is used when a service carries no usable duration.
const DefaultDurationMinutes = 60

var isoDurationRe = regexp.MustCompile(`PT(\d+H)?(\d+M)?`)

// ParseISODuration converts the hour/minute subset of ISO-8601 durations
// ("PT1H30M", "PT45M", "PT2H") to minutes. Absent, unparseable and zero-length
// input falls back to DefaultDurationMinutes; it never fails.
func ParseISODuration(s string) int {
	if s == "" {
		return DefaultDurationMinutes
	}
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return DefaultDurationMinutes
	}

	total := 0
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1][:len(m[1])-1])
		total += h * 60
	}
	if m[2] != "" {
		mins, _ := strconv.Atoi(m[2][:len(m[2])-1])
		total += mins
	}
	if total <= 0 {
		return DefaultDurationMinutes
	}
	return total
}
