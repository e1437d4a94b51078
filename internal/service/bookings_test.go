package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/events"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/models"
	"bookingdesk/internal/timeutil"
)

var ann = models.Customer{ID: "ann@example.com", Email: "ann@example.com", Name: "ann", Role: "User"}

type bookingFixture struct {
	api     *mockAPI
	journal *memJournal
	events  []events.Event
	svc     *BookingService
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{api: new(mockAPI), journal: &memJournal{}}
	expectResource(t, f.api)
	f.api.On("InvalidateResource", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()

	bus := events.NewEventBus()
	bus.SubscribeAll(func(e events.Event) error {
		f.events = append(f.events, e)
		return nil
	})

	f.svc = NewBookingService(f.api, newSlotService(f.api), f.journal, bus, BookingOptions{
		DefaultLocationID: "loc-1",
	}, testLogger())
	return f
}

func (f *bookingFixture) eventTypes() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func tod(s string) *timeutil.TimeOfDay {
	v := timeutil.MustParseTimeOfDay(s)
	return &v
}

func TestBookingService_Create(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("ListBookings", mock.Anything, bookingapi.BookingFilter{ResourceID: "r1"}).Return([]models.Booking{
		{ID: "b0", ResourceID: "r1", StartsAt: at(9, 30), EndsAt: at(10, 0)},
	}, nil)
	f.api.On("CreateBooking", mock.Anything, bookingapi.CreateBookingRequest{
		ResourceID:   "r1",
		ServiceID:    "s1",
		LocationID:   "loc-1",
		StartsAt:     "2025-11-03T10:00:00+00:00",
		EndsAt:       "2025-11-03T11:00:00+00:00",
		Price:        "12.500",
		CustomerID:   ann.ID,
		CustomerName: "ann",
	}).Return(&models.Booking{ID: "b1", ResourceID: "r1", StartsAt: at(10, 0), EndsAt: at(11, 0), CustomerID: ann.ID}, nil)

	res, err := f.svc.Create(context.Background(), CreateInput{
		DraftKey:   "draft-1",
		ResourceID: "r1",
		Date:       testDate,
		Start:      timeutil.MustParseTimeOfDay("10:00"),
		Customer:   ann,
	})
	require.NoError(t, err)

	assert.Equal(t, "b1", res.Booking.ID)
	assert.Equal(t, booking.StateConfirmed, res.State)
	assert.Equal(t, 60, res.Window.DurationMinutes)
	assert.Equal(t, []string{"draft>submitting", "submitting>confirmed"}, f.journal.transitions())
	assert.Equal(t, []string{events.BookingCreated}, f.eventTypes())

	lc := f.svc.Tracker().Get("b1")
	require.NotNil(t, lc)
	assert.Equal(t, booking.StateConfirmed, lc.GetState())
	assert.Nil(t, f.svc.Tracker().Get("draft-1"))
}

func TestBookingService_Create_GeneratesDraftKey(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	f.api.On("CreateBooking", mock.Anything, mock.Anything).Return(&models.Booking{ID: "b9"}, nil)

	res, err := f.svc.Create(context.Background(), CreateInput{
		ResourceID: "r1",
		Date:       testDate,
		Start:      timeutil.MustParseTimeOfDay("11:00"),
		End:        tod("11:30"),
		Customer:   ann,
	})
	require.NoError(t, err)
	assert.Len(t, res.DraftKey, 36)
	assert.Equal(t, 30, res.Window.DurationMinutes)
}

func TestBookingService_Create_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		date  timeutil.Date
		start string
		end   *timeutil.TimeOfDay
		want  error
	}{
		{"closed weekday", testDate.AddDays(1), "10:00", nil, booking.ErrScheduleMismatch},
		{"inverted range", testDate, "11:00", tod("10:00"), booking.ErrInvalidRange},
		{"past", testDate, "09:00", tod("09:30"), booking.ErrPastTime},
		{"outside block", testDate, "11:30", nil, booking.ErrOutsideSchedule},
		{"overlaps", testDate, "10:30", tod("11:00"), booking.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{
				{ID: "b0", ResourceID: "r1", StartsAt: at(10, 0), EndsAt: at(11, 0)},
			}, nil)

			_, err := f.svc.Create(context.Background(), CreateInput{
				ResourceID: "r1",
				Date:       tt.date,
				Start:      timeutil.MustParseTimeOfDay(tt.start),
				End:        tt.end,
				Customer:   ann,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			f.api.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
			assert.Empty(t, f.journal.transitions())
			assert.Empty(t, f.events)
		})
	}
}

func TestBookingService_Create_Rejected(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	f.api.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, &bookingapi.UpstreamError{Op: "create_booking", StatusCode: 409, Message: "slot taken"}).Once()

	in := CreateInput{
		DraftKey:   "draft-2",
		ResourceID: "r1",
		Date:       testDate,
		Start:      timeutil.MustParseTimeOfDay("10:00"),
		Customer:   ann,
	}
	_, err := f.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, bookingapi.IsUpstream(err))
	assert.Equal(t, []string{"draft>submitting", "submitting>rejected"}, f.journal.transitions())
	assert.Equal(t, []string{events.BookingRejected}, f.eventTypes())
	assert.Equal(t, booking.StateRejected, f.svc.Tracker().Get("draft-2").GetState())

	// A rejected draft can be resubmitted.
	f.api.On("CreateBooking", mock.Anything, mock.Anything).Return(&models.Booking{ID: "b2"}, nil).Once()
	res, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "b2", res.Booking.ID)
}

func TestBookingService_Update(t *testing.T) {
	f := newBookingFixture(t)
	own := &models.Booking{ID: "b1", ResourceID: "r1", StartsAt: at(10, 0), EndsAt: at(11, 0), CustomerID: ann.ID}
	f.api.On("GetBooking", mock.Anything, "b1").Return(own, nil)
	f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{*own}, nil)
	f.api.On("UpdateBooking", mock.Anything, "b1", bookingapi.UpdateBookingRequest{
		StartsAt: "2025-11-03T10:30:00+00:00",
		EndsAt:   "2025-11-03T11:30:00+00:00",
	}).Return(&models.Booking{ID: "b1", ResourceID: "r1", StartsAt: at(10, 30), EndsAt: at(11, 30)}, nil)

	res, err := f.svc.Update(context.Background(), UpdateInput{
		BookingID: "b1",
		Date:      testDate,
		Start:     timeutil.MustParseTimeOfDay("10:30"),
		Customer:  ann,
	})
	require.NoError(t, err)
	assert.Equal(t, booking.StateConfirmed, res.State)
	assert.Equal(t, []string{"confirmed>editing", "editing>submitting", "submitting>confirmed"}, f.journal.transitions())
	assert.Equal(t, []string{events.BookingUpdated}, f.eventTypes())
}

func TestBookingService_Update_ConflictKeepsConfirmed(t *testing.T) {
	f := newBookingFixture(t)
	own := &models.Booking{ID: "b1", ResourceID: "r1", StartsAt: at(10, 0), EndsAt: at(11, 0), CustomerID: ann.ID}
	other := models.Booking{ID: "b2", ResourceID: "r1", StartsAt: at(11, 0), EndsAt: at(12, 0)}
	f.api.On("GetBooking", mock.Anything, "b1").Return(own, nil)
	f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{*own, other}, nil)

	_, err := f.svc.Update(context.Background(), UpdateInput{
		BookingID: "b1",
		Date:      testDate,
		Start:     timeutil.MustParseTimeOfDay("10:30"),
		Customer:  ann,
	})
	assert.ErrorIs(t, err, booking.ErrConflict)
	f.api.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, booking.StateConfirmed, f.svc.Tracker().Get("b1").GetState())
}

func TestBookingService_Update_Forbidden(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("GetBooking", mock.Anything, "b1").
		Return(&models.Booking{ID: "b1", ResourceID: "r1", CustomerID: "bob@example.com"}, nil)

	_, err := f.svc.Update(context.Background(), UpdateInput{BookingID: "b1", Date: testDate, Customer: ann})
	assert.ErrorIs(t, err, ErrForbidden)

	admin := ann
	admin.Role = "admin"
	f.api.On("ListBookings", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	f.api.On("UpdateBooking", mock.Anything, "b1", mock.Anything).Return(&models.Booking{ID: "b1"}, nil)
	_, err = f.svc.Update(context.Background(), UpdateInput{
		BookingID: "b1",
		Date:      testDate,
		Start:     timeutil.MustParseTimeOfDay("10:00"),
		Customer:  admin,
	})
	assert.NoError(t, err)
}

func TestBookingService_Cancel(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("GetBooking", mock.Anything, "b1").
		Return(&models.Booking{ID: "b1", ResourceID: "r1", StartsAt: at(10, 0), EndsAt: at(11, 0), CustomerID: ann.ID}, nil)
	f.api.On("DeleteBooking", mock.Anything, "b1").Return(nil)

	require.NoError(t, f.svc.Cancel(context.Background(), "b1", ann))
	assert.Equal(t, []string{"confirmed>canceled"}, f.journal.transitions())
	assert.Equal(t, []string{events.BookingCanceled}, f.eventTypes())
	assert.Nil(t, f.svc.Tracker().Get("b1"))
}

func TestBookingService_Cancel_Errors(t *testing.T) {
	f := newBookingFixture(t)
	f.api.On("GetBooking", mock.Anything, "gone").
		Return(&models.Booking{ID: "gone", CustomerID: ann.ID, IsCanceled: true}, nil)
	f.api.On("GetBooking", mock.Anything, "b1").
		Return(&models.Booking{ID: "b1", ResourceID: "r1", CustomerID: ann.ID}, nil)
	f.api.On("DeleteBooking", mock.Anything, "b1").
		Return(&bookingapi.UpstreamError{Op: "delete_booking", StatusCode: 500})

	assert.ErrorIs(t, f.svc.Cancel(context.Background(), "gone", ann), ErrBookingCanceled)

	err := f.svc.Cancel(context.Background(), "b1", ann)
	assert.True(t, bookingapi.IsUpstream(err))
	assert.Empty(t, f.events)
}

func TestBookingService_HistoryAndExport(t *testing.T) {
	f := newBookingFixture(t)
	now := testNow
	f.api.On("ListCustomerBookings", mock.Anything, ann.ID).Return([]models.Booking{
		{ID: "old", ResourceID: "r1", CustomerID: ann.ID, StartsAt: now.AddDate(0, 0, -3), EndsAt: now.AddDate(0, 0, -3).Add(time.Hour)},
		{ID: "current", ResourceID: "r1", CustomerID: ann.ID, StartsAt: now.Add(-15 * time.Minute), EndsAt: now.Add(45 * time.Minute)},
		{ID: "next", ResourceID: "r1", CustomerID: ann.ID, StartsAt: now.AddDate(0, 0, 3), EndsAt: now.AddDate(0, 0, 3).Add(time.Hour)},
		{ID: "void", ResourceID: "r1", CustomerID: ann.ID, StartsAt: now.AddDate(0, 0, 5), EndsAt: now.AddDate(0, 0, 5).Add(time.Hour), IsCanceled: true},
	}, nil)
	f.api.On("ListResources", mock.Anything).Return([]models.Resource{{ID: "r1", Name: "Room A"}}, nil)

	all, err := f.svc.History(context.Background(), ann, booking.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "old", all[0].ID)
	assert.Equal(t, booking.HistoryCompleted, all[0].Status)
	// Status follows the service clock, not the wall clock.
	assert.Equal(t, "current", all[1].ID)
	assert.Equal(t, booking.HistoryOngoing, all[1].Status)

	upcoming, err := f.svc.History(context.Background(), ann, booking.HistoryFilter{Status: booking.HistoryUpcoming})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "next", upcoming[0].ID)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), &buf, ann, booking.HistoryFilter{}))
	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestBookingService_Activity(t *testing.T) {
	f := newBookingFixture(t)
	require.NoError(t, f.journal.Record(context.Background(), &journal.Entry{
		BookingID:  "b1",
		CustomerID: ann.ID,
		FromState:  "confirmed",
		ToState:    "canceled",
	}))

	got, err := f.svc.Activity(context.Background(), ann, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	noJournal := NewBookingService(f.api, newSlotService(f.api), nil, nil, BookingOptions{}, testLogger())
	got, err = noJournal.Activity(context.Background(), ann, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBookingService_BookingActivity(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	for _, to := range []string{"confirmed", "canceled"} {
		require.NoError(t, f.journal.Record(ctx, &journal.Entry{BookingID: "b1", CustomerID: ann.ID, ToState: to}))
	}
	f.api.On("GetBooking", mock.Anything, "b1").
		Return(&models.Booking{ID: "b1", CustomerID: ann.ID, IsCanceled: true}, nil)

	got, err := f.svc.BookingActivity(ctx, "b1", ann)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "confirmed", got[0].ToState)

	bob := models.Customer{ID: "bob@example.com", Role: "User"}
	_, err = f.svc.BookingActivity(ctx, "b1", bob)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := models.Customer{ID: "root@example.com", Role: "admin"}
	_, err = f.svc.BookingActivity(ctx, "b1", admin)
	assert.NoError(t, err)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "forbidden", outcomeOf(ErrForbidden))
	assert.Equal(t, "busy", outcomeOf(ErrLifecycle))
	assert.Equal(t, "not_found", outcomeOf(&bookingapi.UpstreamError{StatusCode: 404}))
	assert.Equal(t, "upstream_error", outcomeOf(errors.New("x")))
}
