package booking

import (
	"fmt"
	"time"

	"bookingdesk/internal/availability"
	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

// Request is a proposed booking window with everything needed to check it.
type Request struct {
	Date  timeutil.Date
	Start timeutil.TimeOfDay
	End   timeutil.TimeOfDay

	Blocks           []schedule.Block
	Existing         []models.Booking
	ExcludeBookingID string // the booking being edited
	Capacity         int

	// ValidDates restricts Date when non-nil.
	ValidDates map[timeutil.Date]struct{}

	Now      time.Time      // wall clock, expressed in the resource zone
	Location *time.Location // resource zone for local-day projection and wire timestamps
	Offset   *time.Location // wire zone when Location is nil
}

// Window is an accepted booking window ready for the booking API.
type Window struct {
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Validate runs the checks in a fixed order and returns the first failure:
// schedule mismatch, invalid range, past time, outside schedule, conflict.
func Validate(req Request) (Window, error) {
	if req.Date.IsZero() {
		return Window{}, NewValidationError(KindScheduleMismatch, "date is required")
	}
	if req.ValidDates != nil {
		if _, ok := req.ValidDates[req.Date]; !ok {
			return Window{}, NewValidationError(KindScheduleMismatch, "")
		}
	}

	if req.Start >= req.End {
		return Window{}, NewValidationError(KindInvalidRange, "")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	if req.Location != nil {
		now = now.In(req.Location)
	}
	if timeutil.IsPastRelativeTo(req.Date, req.Start, now) {
		return Window{}, NewValidationError(KindPastTime, "")
	}

	weekday := schedule.FromTime(req.Date.Weekday())
	if !schedule.ContainsWindow(req.Blocks, weekday, req.Start, req.End) {
		return Window{}, NewValidationError(KindOutsideSchedule, "")
	}

	existing := req.Existing
	if req.ExcludeBookingID != "" {
		existing = make([]models.Booking, 0, len(req.Existing))
		for _, b := range req.Existing {
			if b.ID != req.ExcludeBookingID {
				existing = append(existing, b)
			}
		}
	}
	intervals := availability.BookingIntervals(existing, req.Date, req.Location)
	if availability.FindConflict(int(req.Start), int(req.End), intervals, req.Capacity) {
		hits := availability.Conflicts(int(req.Start), int(req.End), intervals)
		return Window{}, NewValidationError(KindConflict,
			fmt.Sprintf("%s-%s overlaps %d existing booking(s)", req.Start, req.End, len(hits)))
	}

	// The written instants must be the ones the conflict check projected.
	wire := req.Location
	if wire == nil {
		wire = req.Offset
	}
	return Window{
		StartsAt:        timeutil.WireTimestamp(req.Date, req.Start, wire),
		EndsAt:          timeutil.WireTimestamp(req.Date, req.End, wire),
		DurationMinutes: int(req.End - req.Start),
	}, nil
}

// DeriveEnd fills the end time from the service duration, wrapping at midnight.
func DeriveEnd(start timeutil.TimeOfDay, durationMinutes int) timeutil.TimeOfDay {
	return start.AddMinutes(durationMinutes)
}
