// Package availability stamps generated slots with booking occupancy and
// answers window conflict queries using the same counting rule.
package availability

import (
	"time"

	"bookingdesk/internal/models"
	"bookingdesk/internal/slots"
	"bookingdesk/internal/timeutil"
)

// Interval is a booking projected onto one local day, in minutes since
// midnight. End may be MinutesPerDay when the booking runs past midnight.
type Interval struct {
	Start        int
	End          int
	BookingID    string
	CustomerID   string
	CustomerName string
}

// Overlaps is the half-open intersection test: touching windows do not overlap.
func Overlaps(start, end, otherStart, otherEnd int) bool {
	return start < otherEnd && end > otherStart
}

// BookingIntervals projects the active bookings that touch day (in loc) onto
// minute intervals. Bookings crossing midnight are clipped to the day.
func BookingIntervals(bookings []models.Booking, day timeutil.Date, loc *time.Location) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	dayStart := day.At(0, loc)
	dayEnd := day.At(timeutil.MinutesPerDay, loc)

	var out []Interval
	for i := range bookings {
		b := &bookings[i]
		if b.IsCanceled || !b.EndsAt.After(b.StartsAt) {
			continue
		}
		if !b.StartsAt.Before(dayEnd) || !b.EndsAt.After(dayStart) {
			continue
		}

		// Wall-clock minutes, so a transition earlier in the day does not
		// shift the interval against the schedule grid.
		start, end := 0, timeutil.MinutesPerDay
		if b.StartsAt.After(dayStart) {
			start = timeutil.MinutesSinceMidnight(b.StartsAt.In(loc))
		}
		if b.EndsAt.Before(dayEnd) {
			local := b.EndsAt.In(loc)
			end = timeutil.MinutesSinceMidnight(local)
			if local.Second() != 0 || local.Nanosecond() != 0 {
				end++
			}
		}
		out = append(out, Interval{
			Start:        start,
			End:          end,
			BookingID:    b.ID,
			CustomerID:   b.CustomerID,
			CustomerName: b.CustomerName,
		})
	}
	return out
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return 1
	}
	return capacity
}

// Conflicts returns the intervals overlapping [start, end).
func Conflicts(start, end int, intervals []Interval) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if Overlaps(start, end, iv.Start, iv.End) {
			out = append(out, iv)
		}
	}
	return out
}

// ClassifySlots returns a copy of in with occupancy and status set. A slot
// is booked when the overlapping booking count reaches capacity, otherwise
// available inside the schedule and unavailable outside it. The result does
// not depend on any previous classification of in.
func ClassifySlots(in []slots.Slot, intervals []Interval, capacity int) []slots.Slot {
	capacity = normalizeCapacity(capacity)
	out := make([]slots.Slot, len(in))
	for i, s := range in {
		hits := Conflicts(s.StartMinute, s.EndMinute, intervals)

		s.Occupancy = slots.Occupancy{Count: len(hits), Capacity: capacity}
		s.BookingIDs = nil
		for _, h := range hits {
			s.BookingIDs = append(s.BookingIDs, h.BookingID)
		}

		switch {
		case len(hits) >= capacity:
			s.Status = slots.StatusBooked
		case s.InSchedule:
			s.Status = slots.StatusAvailable
		default:
			s.Status = slots.StatusUnavailable
		}
		out[i] = s
	}
	return out
}

// FindConflict reports whether [start, end) is blocked, using the same count
// rule as ClassifySlots.
func FindConflict(start, end int, intervals []Interval, capacity int) bool {
	return len(Conflicts(start, end, intervals)) >= normalizeCapacity(capacity)
}

// Summary counts classified slots by status.
type Summary struct {
	Available   int `json:"available"`
	Booked      int `json:"booked"`
	Unavailable int `json:"unavailable"`
}

// Summarize tallies slot statuses.
func Summarize(classified []slots.Slot) Summary {
	var s Summary
	for _, sl := range classified {
		switch sl.Status {
		case slots.StatusAvailable:
			s.Available++
		case slots.StatusBooked:
			s.Booked++
		case slots.StatusUnavailable:
			s.Unavailable++
		}
	}
	return s
}
