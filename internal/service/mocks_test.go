package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListResources(ctx context.Context) ([]models.Resource, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Resource), args.Error(1)
}
func (m *mockAPI) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}
func (m *mockAPI) GetScheduleBlocks(ctx context.Context, name string, w schedule.Weekday) ([]schedule.Block, error) {
	args := m.Called(ctx, name, w)
	return args.Get(0).([]schedule.Block), args.Error(1)
}
func (m *mockAPI) GetServiceIDForResource(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
func (m *mockAPI) GetService(ctx context.Context, id string) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockAPI) ListBookings(ctx context.Context, f bookingapi.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockAPI) ListCustomerBookings(ctx context.Context, id string) ([]models.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockAPI) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockAPI) CreateBooking(ctx context.Context, req bookingapi.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockAPI) UpdateBooking(ctx context.Context, id string, req bookingapi.UpdateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockAPI) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockAPI) InvalidateResource(ctx context.Context, name, id string) {
	m.Called(ctx, name, id)
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Record(_ context.Context, e *journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, *e)
	return nil
}

func (j *memJournal) ListByCustomer(_ context.Context, customerID string, _ int) ([]journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Entry
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].CustomerID == customerID {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *memJournal) ListByBooking(_ context.Context, bookingID string) ([]journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Entry
	for _, e := range j.entries {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *memJournal) transitions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.FromState + ">" + e.ToState
	}
	return out
}

// Monday 3 November 2025, 09:15 UTC.
var (
	testNow  = time.Date(2025, time.November, 3, 9, 15, 0, 0, time.UTC)
	testDate = timeutil.NewDate(2025, time.November, 3)
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func testBlocks(t *testing.T) []schedule.Block {
	t.Helper()
	b, err := schedule.NewBlock("monday", "09:00", "12:00")
	require.NoError(t, err)
	return []schedule.Block{b}
}

func at(h, m int) time.Time {
	return time.Date(2025, time.November, 3, h, m, 0, 0, time.UTC)
}

// expectResource stubs the read-only lookups of resource r1.
func expectResource(t *testing.T, api *mockAPI) {
	t.Helper()
	api.On("GetResource", mock.Anything, "r1").Return(&models.Resource{
		ID:    "r1",
		Name:  "Room A",
		Rates: []models.Rate{{Price: 12.5}},
	}, nil)
	api.On("GetScheduleBlocks", mock.Anything, "Room A", schedule.Weekday("")).Return(testBlocks(t), nil)
	api.On("GetServiceIDForResource", mock.Anything, "r1").Return("s1", nil)
	api.On("GetService", mock.Anything, "s1").Return(&models.Service{
		ID:               "s1",
		Duration:         "PT1H",
		BookableInterval: "PT30M",
	}, nil)
}

func newSlotService(api *mockAPI) *SlotService {
	return NewSlotService(api, SlotOptions{
		Location:  time.UTC,
		GridFrom:  timeutil.NewTimeOfDay(8, 0),
		GridTo:    timeutil.NewTimeOfDay(12, 0),
		GridStep:  60,
		ValidDays: 30,
		Now:       func() time.Time { return testNow },
	}, testLogger())
}
