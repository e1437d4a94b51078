package booking

import (
	"sort"
	"strings"
	"time"

	"bookingdesk/internal/models"
	"bookingdesk/internal/timeutil"
)

// HistoryStatus is how a booking appears in the user's activity list.
type HistoryStatus string

const (
	HistoryCompleted HistoryStatus = "completed"
	HistoryOngoing   HistoryStatus = "ongoing"
	HistoryUpcoming  HistoryStatus = "upcoming"
	HistoryCanceled  HistoryStatus = "canceled"
)

// ParseHistoryStatus accepts the status names case-insensitively; empty means any.
func ParseHistoryStatus(s string) (HistoryStatus, bool) {
	switch HistoryStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case HistoryCompleted:
		return HistoryCompleted, true
	case HistoryOngoing:
		return HistoryOngoing, true
	case HistoryUpcoming:
		return HistoryUpcoming, true
	case HistoryCanceled:
		return HistoryCanceled, true
	}
	return "", false
}

// StatusOf classifies a booking by its local start date relative to now:
// earlier days are completed, today is ongoing, later days are upcoming.
func StatusOf(b *models.Booking, now time.Time, loc *time.Location) HistoryStatus {
	if b.IsCanceled {
		return HistoryCanceled
	}
	day := b.LocalDate(loc)
	today := timeutil.DateOf(now, loc)
	switch {
	case day.Before(today):
		return HistoryCompleted
	case day.After(today):
		return HistoryUpcoming
	}
	return HistoryOngoing
}

// HistoryFilter selects bookings for the activity view. Zero fields match all.
type HistoryFilter struct {
	CustomerID string
	From       timeutil.Date
	To         timeutil.Date
	Status     HistoryStatus
}

// HistoryEntry is a booking together with its computed status.
type HistoryEntry struct {
	models.Booking
	Status HistoryStatus `json:"status"`
}

// FilterHistory applies f and returns entries ordered by start time.
func FilterHistory(bookings []models.Booking, f HistoryFilter, now time.Time, loc *time.Location) []HistoryEntry {
	var out []HistoryEntry
	for i := range bookings {
		b := bookings[i]
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		day := b.LocalDate(loc)
		if !f.From.IsZero() && day.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && day.After(f.To) {
			continue
		}
		st := StatusOf(&b, now, loc)
		if f.Status != "" && st != f.Status {
			continue
		}
		out = append(out, HistoryEntry{Booking: b, Status: st})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}
