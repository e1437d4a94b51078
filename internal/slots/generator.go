// Package slots expands schedule blocks into fixed-width bookable slots.
package slots

import (
	"fmt"

	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

// DefaultStepMinutes is the slot width when a service has no bookable interval.
const DefaultStepMinutes = 15

// Status of a classified slot.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusBooked      Status = "booked"
	StatusUnavailable Status = "unavailable"
)

// Occupancy counts the bookings overlapping a slot against the resource capacity.
type Occupancy struct {
	Count    int `json:"count"`
	Capacity int `json:"capacity"`
}

// Slot is a half-open [StartMinute, EndMinute) window on a single day.
// Status stays empty until the slot is classified against bookings.
type Slot struct {
	StartMinute int
	EndMinute   int
	InSchedule  bool
	Status      Status
	Occupancy   Occupancy
	BookingIDs  []string
}

// AvailableCount is the number of bookings the slot can still take.
func (s Slot) AvailableCount() int {
	return max(0, s.Occupancy.Capacity-s.Occupancy.Count)
}

// Start returns the slot start as a time of day.
func (s Slot) Start() timeutil.TimeOfDay { return timeutil.TimeOfDay(s.StartMinute) }

// End returns the slot end as a time of day.
func (s Slot) End() timeutil.TimeOfDay { return timeutil.TimeOfDay(s.EndMinute) }

func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.Start(), s.End())
}

// Group holds the slots generated from one schedule block.
type Group struct {
	BlockStart timeutil.TimeOfDay
	BlockEnd   timeutil.TimeOfDay
	Slots      []Slot
}

func normalizeStep(step int) int {
	if step <= 0 {
		return DefaultStepMinutes
	}
	return step
}

func expand(b schedule.Block, step int) []Slot {
	var out []Slot
	for cur := int(b.Start); cur+step <= int(b.End); cur += step {
		out = append(out, Slot{StartMinute: cur, EndMinute: cur + step, InSchedule: true})
	}
	return out
}

// GenerateSlots steps through each block from its start, emitting a slot while
// the whole slot fits. A trailing partial slot is dropped. Slots keep block
// order. A non-positive step falls back to DefaultStepMinutes.
func GenerateSlots(blocks []schedule.Block, step int) []Slot {
	step = normalizeStep(step)
	var out []Slot
	for _, b := range blocks {
		out = append(out, expand(b, step)...)
	}
	return out
}

// GenerateGroups is GenerateSlots keeping one group per block.
func GenerateGroups(blocks []schedule.Block, step int) []Group {
	step = normalizeStep(step)
	groups := make([]Group, 0, len(blocks))
	for _, b := range blocks {
		groups = append(groups, Group{
			BlockStart: b.Start,
			BlockEnd:   b.End,
			Slots:      expand(b, step),
		})
	}
	return groups
}

// GenerateGrid lays a fixed display window [from, to) out in step-wide cells.
// A cell is InSchedule only when it fits inside one of the blocks.
func GenerateGrid(blocks []schedule.Block, from, to timeutil.TimeOfDay, step int) []Slot {
	step = normalizeStep(step)
	var out []Slot
	for cur := int(from); cur+step <= int(to); cur += step {
		s := Slot{StartMinute: cur, EndMinute: cur + step}
		for _, b := range blocks {
			if b.Contains(timeutil.TimeOfDay(cur), timeutil.TimeOfDay(cur+step)) {
				s.InSchedule = true
				break
			}
		}
		out = append(out, s)
	}
	return out
}

// Flatten concatenates the slots of groups in order.
func Flatten(groups []Group) []Slot {
	var out []Slot
	for _, g := range groups {
		out = append(out, g.Slots...)
	}
	return out
}
