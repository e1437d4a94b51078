package schedule

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingdesk/internal/timeutil"
)

func mustBlock(t *testing.T, weekday, start, end string) Block {
	t.Helper()
	b, err := NewBlock(weekday, start, end)
	require.NoError(t, err)
	return b
}

func TestNewBlock(t *testing.T) {
	b := mustBlock(t, "Tuesday", "09:00:00", "12:00:00")
	assert.Equal(t, Tuesday, b.Weekday)
	assert.Equal(t, timeutil.NewTimeOfDay(9, 0), b.Start)

	_, err := NewBlock("tuesday", "12:00", "09:00")
	assert.Error(t, err)
	_, err = NewBlock("funday", "09:00", "10:00")
	assert.Error(t, err)
	_, err = NewBlock("monday", "9am", "10:00")
	assert.Error(t, err)
}

func TestBlocksForWeekday(t *testing.T) {
	blocks := []Block{
		mustBlock(t, "tuesday", "14:00", "17:00"),
		mustBlock(t, "monday", "09:00", "12:00"),
		mustBlock(t, "tuesday", "09:00", "12:00"),
	}

	got := BlocksForWeekday(blocks, Tuesday)
	require.Len(t, got, 2)
	assert.Equal(t, timeutil.NewTimeOfDay(14, 0), got[0].Start, "order preserved")
	assert.Empty(t, BlocksForWeekday(blocks, Sunday))

	w, err := ParseWeekday("  TUESDAY ")
	require.NoError(t, err)
	assert.Len(t, BlocksForWeekday(blocks, w), 2)
}

func TestWeekdayOfUsesLocalZone(t *testing.T) {
	hk, err := time.LoadLocation("Asia/Hong_Kong")
	require.NoError(t, err)

	ts, err := timeutil.ToZonedDateTime("2025-11-04T23:50:00+08:00", hk)
	require.NoError(t, err)
	assert.Equal(t, Tuesday, WeekdayOf(ts, hk))
	assert.Equal(t, Tuesday, WeekdayOf(ts, time.UTC))

	late := time.Date(2025, 11, 4, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Tuesday, WeekdayOf(late, time.UTC))
	assert.Equal(t, Wednesday, WeekdayOf(late, hk))
}

func TestContainsWindow(t *testing.T) {
	blocks := []Block{
		mustBlock(t, "tuesday", "09:00", "12:00"),
		mustBlock(t, "tuesday", "14:00", "17:00"),
	}
	tod := timeutil.MustParseTimeOfDay

	assert.True(t, ContainsWindow(blocks, Tuesday, tod("09:00"), tod("12:00")))
	assert.True(t, ContainsWindow(blocks, Tuesday, tod("15:00"), tod("16:00")))
	assert.False(t, ContainsWindow(blocks, Tuesday, tod("11:00"), tod("14:30")), "spans the gap")
	assert.False(t, ContainsWindow(blocks, Monday, tod("09:00"), tod("10:00")))
}

func TestOverlaps(t *testing.T) {
	blocks := []Block{
		mustBlock(t, "monday", "09:00", "12:00"),
		mustBlock(t, "monday", "11:00", "13:00"),
		mustBlock(t, "monday", "13:00", "15:00"),
		mustBlock(t, "tuesday", "09:00", "12:00"),
	}
	got := Overlaps(blocks)
	require.Len(t, got, 1)
	assert.Equal(t, timeutil.NewTimeOfDay(11, 0), got[0].Second.Start)
}

func TestValidDatesInRange(t *testing.T) {
	blocks := []Block{
		mustBlock(t, "monday", "09:00", "12:00"),
		mustBlock(t, "friday", "09:00", "12:00"),
	}
	from := timeutil.NewDate(2025, 11, 3) // monday
	to := timeutil.NewDate(2025, 11, 16)

	seq := ValidDatesInRange(blocks, from, to)
	first := slices.Collect(seq)
	second := slices.Collect(seq)

	want := []string{"2025-11-03", "2025-11-07", "2025-11-10", "2025-11-14"}
	var got []string
	for _, d := range first {
		got = append(got, d.String())
	}
	assert.Equal(t, want, got)
	assert.Equal(t, first, second, "sequence is restartable")

	assert.Empty(t, slices.Collect(ValidDatesInRange(nil, from, to)))
	assert.Empty(t, slices.Collect(ValidDatesInRange(blocks, to, from)))
}

func TestValidDatesStopsEarly(t *testing.T) {
	blocks := []Block{mustBlock(t, "monday", "09:00", "10:00")}
	from := timeutil.NewDate(2025, 1, 1)
	to := from.AddDays(365)

	count := 0
	for range ValidDatesInRange(blocks, from, to) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestWithoutDates(t *testing.T) {
	blocks := []Block{mustBlock(t, "monday", "09:00", "12:00")}
	from := timeutil.NewDate(2025, 11, 3)
	to := timeutil.NewDate(2025, 11, 17)

	seq := WithoutDates(ValidDatesInRange(blocks, from, to), []timeutil.Date{timeutil.NewDate(2025, 11, 10)})
	set := DateSet(seq)
	assert.Len(t, set, 2)
	_, ok := set[timeutil.NewDate(2025, 11, 10)]
	assert.False(t, ok)
}
