package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

func hongKong(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Hong_Kong")
	require.NoError(t, err)
	return loc
}

// baseRequest is Tuesday 2025-11-04 with a 09:00-12:00 block, one booking
// 10:00-11:00 and "now" on the Monday before.
func baseRequest(t *testing.T) Request {
	t.Helper()
	loc := hongKong(t)
	block, err := schedule.NewBlock("tuesday", "09:00", "12:00")
	require.NoError(t, err)

	return Request{
		Date:   timeutil.NewDate(2025, 11, 4),
		Start:  timeutil.MustParseTimeOfDay("09:00"),
		End:    timeutil.MustParseTimeOfDay("09:30"),
		Blocks: []schedule.Block{block},
		Existing: []models.Booking{{
			ID:       "b1",
			StartsAt: time.Date(2025, 11, 4, 10, 0, 0, 0, loc),
			EndsAt:   time.Date(2025, 11, 4, 11, 0, 0, 0, loc),
		}},
		Capacity: 1,
		Now:      time.Date(2025, 11, 3, 12, 0, 0, 0, loc),
		Location: loc,
		Offset:   timeutil.FixedZoneFor("Asia/Hong_Kong"),
	}
}

func TestValidate_Accepts(t *testing.T) {
	req := baseRequest(t)
	w, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-04T09:00:00+08:00", w.StartsAt)
	assert.Equal(t, "2025-11-04T09:30:00+08:00", w.EndsAt)
	assert.Equal(t, 30, w.DurationMinutes)
}

func TestValidate_Failures(t *testing.T) {
	tod := timeutil.MustParseTimeOfDay

	tests := []struct {
		name   string
		mutate func(r *Request)
		want   error
		kind   Kind
	}{
		{
			name:   "missing date",
			mutate: func(r *Request) { r.Date = timeutil.Date{} },
			want:   ErrScheduleMismatch,
			kind:   KindScheduleMismatch,
		},
		{
			name:   "date not in valid set",
			mutate: func(r *Request) { r.ValidDates = map[timeutil.Date]struct{}{timeutil.NewDate(2025, 11, 11): {}} },
			want:   ErrScheduleMismatch,
			kind:   KindScheduleMismatch,
		},
		{
			name:   "end before start",
			mutate: func(r *Request) { r.Start, r.End = tod("11:00"), tod("10:00") },
			want:   ErrInvalidRange,
			kind:   KindInvalidRange,
		},
		{
			name:   "zero length",
			mutate: func(r *Request) { r.Start, r.End = tod("11:00"), tod("11:00") },
			want:   ErrInvalidRange,
			kind:   KindInvalidRange,
		},
		{
			name: "start equals now",
			mutate: func(r *Request) {
				r.Now = time.Date(2025, 11, 4, 9, 0, 0, 0, r.Location)
			},
			want: ErrPastTime,
			kind: KindPastTime,
		},
		{
			name:   "outside block",
			mutate: func(r *Request) { r.Start, r.End = tod("08:00"), tod("08:30") },
			want:   ErrOutsideSchedule,
			kind:   KindOutsideSchedule,
		},
		{
			name:   "spans block end",
			mutate: func(r *Request) { r.Start, r.End = tod("11:30"), tod("12:30") },
			want:   ErrOutsideSchedule,
			kind:   KindOutsideSchedule,
		},
		{
			name:   "overlaps booking",
			mutate: func(r *Request) { r.Start, r.End = tod("10:30"), tod("11:30") },
			want:   ErrConflict,
			kind:   KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest(t)
			tt.mutate(&req)
			_, err := Validate(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			ve, ok := AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ve.Kind)
		})
	}
}

func TestValidate_Order(t *testing.T) {
	tod := timeutil.MustParseTimeOfDay

	// Past and outside the schedule: past wins.
	req := baseRequest(t)
	req.Start, req.End = tod("07:00"), tod("07:30")
	req.Now = time.Date(2025, 11, 4, 8, 0, 0, 0, req.Location)
	_, err := Validate(req)
	assert.ErrorIs(t, err, ErrPastTime)

	// Inverted and past: range wins.
	req = baseRequest(t)
	req.Start, req.End = tod("10:00"), tod("09:00")
	req.Now = time.Date(2025, 11, 5, 0, 0, 0, 0, req.Location)
	_, err = Validate(req)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestValidate_TouchingAndEditing(t *testing.T) {
	tod := timeutil.MustParseTimeOfDay

	req := baseRequest(t)
	req.Start, req.End = tod("11:00"), tod("12:00")
	_, err := Validate(req)
	assert.NoError(t, err, "touching an existing booking is allowed")

	req = baseRequest(t)
	req.Start, req.End = tod("10:30"), tod("11:30")
	req.ExcludeBookingID = "b1"
	_, err = Validate(req)
	assert.NoError(t, err, "the edited booking does not conflict with itself")

	req = baseRequest(t)
	req.Start, req.End = tod("10:30"), tod("11:30")
	req.Capacity = 2
	_, err = Validate(req)
	assert.NoError(t, err)

	req = baseRequest(t)
	req.Existing[0].IsCanceled = true
	req.Start, req.End = tod("10:00"), tod("11:00")
	_, err = Validate(req)
	assert.NoError(t, err)
}

func TestValidate_DaylightSavingZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	block, err := schedule.NewBlock("tuesday", "09:00", "17:00")
	require.NoError(t, err)

	req := Request{
		Date:   timeutil.NewDate(2025, 7, 8),
		Blocks: []schedule.Block{block},
		Existing: []models.Booking{{
			ID:       "b1",
			StartsAt: time.Date(2025, 7, 8, 11, 0, 0, 0, ny),
			EndsAt:   time.Date(2025, 7, 8, 12, 0, 0, 0, ny),
		}},
		Capacity: 1,
		Now:      time.Date(2025, 7, 7, 9, 0, 0, 0, ny),
		Location: ny,
		Offset:   timeutil.FixedZoneFor("America/New_York"), // -05:00, wrong in July
	}

	req.Start, req.End = timeutil.NewTimeOfDay(10, 0), timeutil.NewTimeOfDay(11, 0)
	w, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-08T10:00:00-04:00", w.StartsAt)
	assert.Equal(t, "2025-07-08T11:00:00-04:00", w.EndsAt)

	startsAt, err := time.Parse(timeutil.WireLayout, w.StartsAt)
	require.NoError(t, err)
	assert.Equal(t, 10, startsAt.In(ny).Hour(), "written at the checked local time")

	req.Start, req.End = timeutil.NewTimeOfDay(10, 30), timeutil.NewTimeOfDay(11, 30)
	_, err = Validate(req)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestValidate_OffsetWithoutLocation(t *testing.T) {
	req := baseRequest(t)
	req.Location = nil
	req.Existing = nil
	req.Now = time.Date(2025, 11, 3, 4, 0, 0, 0, time.UTC)

	w, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-04T09:00:00+08:00", w.StartsAt)
}

func TestDeriveEnd(t *testing.T) {
	start := timeutil.MustParseTimeOfDay("09:00")
	assert.Equal(t, "10:30", DeriveEnd(start, timeutil.ParseISODuration("PT1H30M")).String())
	assert.Equal(t, "00:30", DeriveEnd(timeutil.MustParseTimeOfDay("23:30"), 60).String())
}

func TestUserMessage(t *testing.T) {
	seen := map[string]bool{}
	for kind := range sentinels {
		msg := UserMessage(NewValidationError(kind, ""))
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
	assert.Equal(t, "Failed to process booking. Please try again.", UserMessage(errors.New("boom")))
}
