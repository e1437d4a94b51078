// Package schedule models the weekly opening blocks of a resource.
package schedule

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"bookingdesk/internal/timeutil"
)

// Weekday is the canonical lowercase weekday name used by the booking API.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var byTimeWeekday = [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// FromTime maps a time.Weekday to its canonical name.
func FromTime(d time.Weekday) Weekday {
	return byTimeWeekday[d]
}

// ParseWeekday accepts any casing and surrounding spaces.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range byTimeWeekday {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// Block is a recurring opening window on one weekday. Start < End and a
// block never crosses midnight.
type Block struct {
	Weekday Weekday            `json:"weekday"`
	Start   timeutil.TimeOfDay `json:"start_time"`
	End     timeutil.TimeOfDay `json:"end_time"`
}

// NewBlock parses a block from its wire fields.
func NewBlock(weekday, start, end string) (Block, error) {
	w, err := ParseWeekday(weekday)
	if err != nil {
		return Block{}, err
	}
	s, err := timeutil.ParseTimeOfDay(start)
	if err != nil {
		return Block{}, err
	}
	e, err := timeutil.ParseTimeOfDay(end)
	if err != nil {
		return Block{}, err
	}
	b := Block{Weekday: w, Start: s, End: e}
	if err := b.Validate(); err != nil {
		return Block{}, err
	}
	return b, nil
}

// Validate checks the block bounds.
func (b Block) Validate() error {
	if b.Start < 0 || b.End > timeutil.MinutesPerDay {
		return fmt.Errorf("block %s %s-%s: out of day bounds", b.Weekday, b.Start, b.End)
	}
	if b.Start >= b.End {
		return fmt.Errorf("block %s %s-%s: start must be before end", b.Weekday, b.Start, b.End)
	}
	return nil
}

// Contains reports whether [start, end) lies entirely within the block.
func (b Block) Contains(start, end timeutil.TimeOfDay) bool {
	return start >= b.Start && end <= b.End
}

func (b Block) String() string {
	return fmt.Sprintf("%s %s-%s", b.Weekday, b.Start, b.End)
}

// BlocksForWeekday returns the blocks for weekday in their original order.
func BlocksForWeekday(blocks []Block, weekday Weekday) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Weekday == weekday {
			out = append(out, b)
		}
	}
	return out
}

// BlocksForDate returns the blocks that apply on d.
func BlocksForDate(blocks []Block, d timeutil.Date) []Block {
	return BlocksForWeekday(blocks, FromTime(d.Weekday()))
}

// WeekdayOf returns the weekday of t as observed in loc, which may differ from
// the UTC weekday near midnight.
func WeekdayOf(t time.Time, loc *time.Location) Weekday {
	if loc != nil {
		t = t.In(loc)
	}
	return FromTime(t.Weekday())
}

// ContainsWindow reports whether [start, end) fits inside a single block on
// weekday.
func ContainsWindow(blocks []Block, weekday Weekday, start, end timeutil.TimeOfDay) bool {
	for _, b := range BlocksForWeekday(blocks, weekday) {
		if b.Contains(start, end) {
			return true
		}
	}
	return false
}

// Overlap is a pair of blocks on the same weekday whose windows intersect.
type Overlap struct {
	First, Second Block
}

// Overlaps lists intersecting block pairs. Overlapping blocks are still used
// as-is by slot generation; this is for diagnostics.
func Overlaps(blocks []Block) []Overlap {
	var out []Overlap
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			a, b := blocks[i], blocks[j]
			if a.Weekday == b.Weekday && a.Start < b.End && b.Start < a.End {
				out = append(out, Overlap{First: a, Second: b})
			}
		}
	}
	return out
}

// ValidDatesInRange yields every date in [from, to] whose weekday has at least
// one block. The sequence is lazy and can be ranged over repeatedly.
func ValidDatesInRange(blocks []Block, from, to timeutil.Date) iter.Seq[timeutil.Date] {
	open := make(map[Weekday]bool, 7)
	for _, b := range blocks {
		open[b.Weekday] = true
	}
	return func(yield func(timeutil.Date) bool) {
		if len(open) == 0 {
			return
		}
		for d := from; !d.After(to); d = d.AddDays(1) {
			if !open[FromTime(d.Weekday())] {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// WithoutDates filters closed dates (holidays, days off) out of seq.
func WithoutDates(seq iter.Seq[timeutil.Date], closed []timeutil.Date) iter.Seq[timeutil.Date] {
	if len(closed) == 0 {
		return seq
	}
	skip := make(map[timeutil.Date]struct{}, len(closed))
	for _, d := range closed {
		skip[d] = struct{}{}
	}
	return func(yield func(timeutil.Date) bool) {
		for d := range seq {
			if _, ok := skip[d]; ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// DateSet collects seq into a membership set.
func DateSet(seq iter.Seq[timeutil.Date]) map[timeutil.Date]struct{} {
	set := make(map[timeutil.Date]struct{})
	for d := range seq {
		set[d] = struct{}{}
	}
	return set
}
