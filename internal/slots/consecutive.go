package slots

import (
	"fmt"
	"sort"
)

// SlotInfo is a simplified representation for UI.
type SlotInfo struct {
	Start          string   `json:"start"` // "10:00"
	End            string   `json:"end"`   // "10:30"
	Label          string   `json:"label"` // "10:00 AM"
	Status         Status   `json:"status"`
	Available      bool     `json:"available"`
	Booked         int      `json:"booked"`
	Capacity       int      `json:"capacity"`
	AvailableCount int      `json:"available_count"`
	BookingIDs     []string `json:"booking_ids,omitempty"`
}

// ToSlotInfo converts slots to SlotInfo for UI.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:          s.Start().String(),
			End:            s.End().String(),
			Label:          s.Start().Format12h(),
			Status:         s.Status,
			Available:      s.Status == StatusAvailable,
			Booked:         s.Occupancy.Count,
			Capacity:       s.Occupancy.Capacity,
			AvailableCount: s.AvailableCount(),
			BookingIDs:     s.BookingIDs,
		}
	}
	return result
}

// Available returns only available slots.
func Available(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Status == StatusAvailable {
			available = append(available, s)
		}
	}
	return available
}

// ConsecutiveRuns finds groups of back-to-back available slots.
func ConsecutiveRuns(slots []Slot) [][]Slot {
	available := Available(slots)
	if len(available) == 0 {
		return nil
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].StartMinute < available[j].StartMinute
	})

	var runs [][]Slot
	current := []Slot{available[0]}
	for i := 1; i < len(available); i++ {
		if available[i].StartMinute == current[len(current)-1].EndMinute {
			current = append(current, available[i])
		} else {
			runs = append(runs, current)
			current = []Slot{available[i]}
		}
	}
	return append(runs, current)
}

// DurationOptions lists the booking lengths, in minutes, that fit in the
// available run starting at startMinute.
func DurationOptions(slots []Slot, startMinute int) []int {
	startIdx := indexOf(slots, startMinute)
	if startIdx < 0 || slots[startIdx].Status != StatusAvailable {
		return nil
	}

	var options []int
	total := 0
	for i := startIdx; i < len(slots); i++ {
		if slots[i].Status != StatusAvailable {
			break
		}
		if i > startIdx && slots[i].StartMinute != slots[i-1].EndMinute {
			break
		}
		total += slots[i].EndMinute - slots[i].StartMinute
		options = append(options, total)
	}
	return options
}

func indexOf(slots []Slot, startMinute int) int {
	for i, s := range slots {
		if s.StartMinute == startMinute {
			return i
		}
	}
	return -1
}

// FormatDuration formats duration in minutes to a short label.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
