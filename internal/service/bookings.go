package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/events"
	"bookingdesk/internal/export"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/metrics"
	"bookingdesk/internal/models"
	"bookingdesk/internal/timeutil"
	"bookingdesk/internal/tracing"
)

var (
	ErrForbidden       = errors.New("service: booking belongs to another customer")
	ErrBookingCanceled = errors.New("service: booking is canceled")
	ErrLifecycle       = errors.New("service: booking change already in progress")
)

// adminRole may change any customer's bookings.
const adminRole = "Admin"

// CreateInput is a new booking request from a customer.
type CreateInput struct {
	DraftKey   string // optional; a new key is generated when empty
	ResourceID string
	Date       timeutil.Date
	Start      timeutil.TimeOfDay
	End        *timeutil.TimeOfDay // derived from the service duration when nil
	Customer   models.Customer
}

// UpdateInput moves an existing booking to a new window.
type UpdateInput struct {
	BookingID string
	Date      timeutil.Date
	Start     timeutil.TimeOfDay
	End       *timeutil.TimeOfDay
	Customer  models.Customer
}

// Result is the outcome of a successful submission.
type Result struct {
	DraftKey string          `json:"draft_key,omitempty"`
	Booking  *models.Booking `json:"booking"`
	State    booking.State   `json:"state"`
	Window   booking.Window  `json:"window"`
}

// BookingOptions configures the BookingService.
type BookingOptions struct {
	Offset            *time.Location // wire offset for timestamps
	DefaultLocationID string
	LifecycleTimeout  time.Duration
}

// BookingService validates and submits booking changes.
type BookingService struct {
	api     BookingAPI
	slots   *SlotService
	journal Journal
	events  Publisher
	fsm     *booking.FSM
	tracker *booking.Tracker
	opts    BookingOptions
	logger  zerolog.Logger
}

// NewBookingService creates the service. journal and events may be nil.
func NewBookingService(api BookingAPI, slotService *SlotService, j Journal, pub Publisher, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	if opts.Offset == nil {
		opts.Offset = slotService.Location()
	}
	return &BookingService{
		api:     api,
		slots:   slotService,
		journal: j,
		events:  pub,
		fsm:     booking.NewFSM(),
		tracker: booking.NewTracker(opts.LifecycleTimeout),
		opts:    opts,
		logger:  logger.With().Str("component", "bookings").Logger(),
	}
}

// Tracker exposes the lifecycle tracker for cleanup loops.
func (s *BookingService) Tracker() *booking.Tracker { return s.tracker }

// Create validates the window against fresh bookings and submits it.
func (s *BookingService) Create(ctx context.Context, in CreateInput) (*Result, error) {
	ctx, span := tracing.Start(ctx, "BookingService.Create")
	defer span.End()

	key := in.DraftKey
	if key == "" {
		key = uuid.NewString()
	}
	lc := s.tracker.GetOrCreate(key)

	info, err := s.slots.Resource(ctx, in.ResourceID)
	if err != nil {
		metrics.IncBookingAction("create", "upstream_error")
		return nil, err
	}

	end := booking.DeriveEnd(in.Start, info.Service.DurationMinutes())
	if in.End != nil {
		end = *in.End
	}

	existing, err := s.api.ListBookings(ctx, bookingapi.BookingFilter{ResourceID: in.ResourceID})
	if err != nil {
		metrics.IncBookingAction("create", "upstream_error")
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	window, err := booking.Validate(s.request(info, in.Date, in.Start, end, existing, ""))
	if err != nil {
		s.validationFailed("create", err)
		return nil, err
	}

	if err := s.transition(ctx, lc, booking.StateSubmitting, "submitted", in.Customer.ID, in.ResourceID, window); err != nil {
		return nil, err
	}

	locationID := info.Resource.LocationID
	if locationID == "" {
		locationID = s.opts.DefaultLocationID
	}
	created, err := s.api.CreateBooking(ctx, bookingapi.CreateBookingRequest{
		ResourceID:   info.Resource.ID,
		ServiceID:    info.Service.ID,
		LocationID:   locationID,
		StartsAt:     window.StartsAt,
		EndsAt:       window.EndsAt,
		Price:        info.Resource.DefaultPrice(),
		CustomerID:   in.Customer.ID,
		CustomerName: in.Customer.Name,
	})
	if err != nil {
		s.reject(ctx, lc, err, in.Customer.ID, in.ResourceID, window)
		metrics.IncBookingAction("create", "upstream_error")
		return nil, err
	}

	lc.SetBookingID(created.ID)
	if err := s.transition(ctx, lc, booking.StateConfirmed, "created", in.Customer.ID, in.ResourceID, window); err != nil {
		return nil, err
	}
	s.tracker.Delete(key)
	confirmed := booking.NewLifecycle(created.ID)
	confirmed.SetBookingID(created.ID)
	confirmed.SetState(booking.StateConfirmed, "created")
	s.tracker.Put(confirmed)

	s.slots.Invalidate(ctx, in.ResourceID)
	s.publish(events.BookingCreated, created.ID, in.Customer.ID, created)
	metrics.IncBookingAction("create", "ok")

	s.logger.Info().
		Str("booking_id", created.ID).
		Str("resource_id", in.ResourceID).
		Str("starts_at", window.StartsAt).
		Msg("booking created")

	return &Result{DraftKey: key, Booking: created, State: booking.StateConfirmed, Window: window}, nil
}

// Update moves a booking to a new window on the same resource.
func (s *BookingService) Update(ctx context.Context, in UpdateInput) (*Result, error) {
	ctx, span := tracing.Start(ctx, "BookingService.Update")
	defer span.End()

	current, err := s.owned(ctx, in.BookingID, in.Customer)
	if err != nil {
		metrics.IncBookingAction("update", outcomeOf(err))
		return nil, err
	}

	info, err := s.slots.Resource(ctx, current.ResourceID)
	if err != nil {
		metrics.IncBookingAction("update", "upstream_error")
		return nil, err
	}

	end := booking.DeriveEnd(in.Start, info.Service.DurationMinutes())
	if in.End != nil {
		end = *in.End
	}

	lc := s.confirmedLifecycle(current.ID)
	if err := s.transition(ctx, lc, booking.StateEditing, "edit requested", in.Customer.ID, current.ResourceID, booking.Window{}); err != nil {
		return nil, err
	}

	existing, err := s.api.ListBookings(ctx, bookingapi.BookingFilter{ResourceID: current.ResourceID})
	if err != nil {
		lc.SetState(booking.StateConfirmed, "edit abandoned")
		metrics.IncBookingAction("update", "upstream_error")
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	window, err := booking.Validate(s.request(info, in.Date, in.Start, end, existing, current.ID))
	if err != nil {
		_ = s.fsm.Transition(lc, booking.StateConfirmed, booking.UserMessage(err))
		s.validationFailed("update", err)
		return nil, err
	}

	if err := s.transition(ctx, lc, booking.StateSubmitting, "submitted", in.Customer.ID, current.ResourceID, window); err != nil {
		return nil, err
	}

	updated, err := s.api.UpdateBooking(ctx, current.ID, bookingapi.UpdateBookingRequest{
		StartsAt: window.StartsAt,
		EndsAt:   window.EndsAt,
	})
	if err != nil {
		s.reject(ctx, lc, err, in.Customer.ID, current.ResourceID, window)
		// The remote booking keeps its previous window.
		lc.SetState(booking.StateConfirmed, "update rejected")
		metrics.IncBookingAction("update", "upstream_error")
		return nil, err
	}

	if err := s.transition(ctx, lc, booking.StateConfirmed, "updated", in.Customer.ID, current.ResourceID, window); err != nil {
		return nil, err
	}

	s.slots.Invalidate(ctx, current.ResourceID)
	s.publish(events.BookingUpdated, current.ID, in.Customer.ID, updated)
	metrics.IncBookingAction("update", "ok")

	return &Result{Booking: updated, State: booking.StateConfirmed, Window: window}, nil
}

// Cancel deletes a booking.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, customer models.Customer) error {
	ctx, span := tracing.Start(ctx, "BookingService.Cancel")
	defer span.End()

	current, err := s.owned(ctx, bookingID, customer)
	if err != nil {
		metrics.IncBookingAction("cancel", outcomeOf(err))
		return err
	}

	if err := s.api.DeleteBooking(ctx, current.ID); err != nil {
		metrics.IncBookingAction("cancel", "upstream_error")
		return err
	}

	lc := s.confirmedLifecycle(current.ID)
	window := booking.Window{
		StartsAt: current.StartsAt.In(s.opts.Offset).Format(timeutil.WireLayout),
		EndsAt:   current.EndsAt.In(s.opts.Offset).Format(timeutil.WireLayout),
	}
	if err := s.transition(ctx, lc, booking.StateCanceled, "canceled by customer", customer.ID, current.ResourceID, window); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", current.ID).Msg("lifecycle out of sync after cancel")
	}
	s.tracker.Delete(current.ID)

	s.slots.Invalidate(ctx, current.ResourceID)
	s.publish(events.BookingCanceled, current.ID, customer.ID, current)
	metrics.IncBookingAction("cancel", "ok")
	return nil
}

// History returns the customer's bookings with their computed status.
func (s *BookingService) History(ctx context.Context, customer models.Customer, f booking.HistoryFilter) ([]booking.HistoryEntry, error) {
	list, err := s.api.ListCustomerBookings(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	f.CustomerID = customer.ID
	return booking.FilterHistory(list, f, s.slots.opts.Now(), s.slots.Location()), nil
}

// Activity returns the customer's recent lifecycle transitions.
func (s *BookingService) Activity(ctx context.Context, customer models.Customer, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.ListByCustomer(ctx, customer.ID, limit)
}

// BookingActivity returns the recorded transitions of one booking, oldest
// first. Canceled bookings keep their timeline.
func (s *BookingService) BookingActivity(ctx context.Context, bookingID string, customer models.Customer) ([]journal.Entry, error) {
	current, err := s.api.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !mayManage(current, customer) {
		return nil, ErrForbidden
	}
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.ListByBooking(ctx, bookingID)
}

// Export writes the customer's history and activity as a workbook.
func (s *BookingService) Export(ctx context.Context, w io.Writer, customer models.Customer, f booking.HistoryFilter) error {
	entries, err := s.History(ctx, customer, f)
	if err != nil {
		return err
	}
	activity, err := s.Activity(ctx, customer, 0)
	if err != nil {
		return err
	}
	names, err := s.slots.ResourceNames(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("export without resource names")
		names = nil
	}
	return export.WriteHistory(w, entries, activity, names, s.slots.Location())
}

func (s *BookingService) request(info *ResourceInfo, date timeutil.Date, start, end timeutil.TimeOfDay, existing []models.Booking, exclude string) booking.Request {
	return booking.Request{
		Date:             date,
		Start:            start,
		End:              end,
		Blocks:           info.Blocks,
		Existing:         existing,
		ExcludeBookingID: exclude,
		Capacity:         info.Resource.EffectiveCapacity(),
		ValidDates:       s.slots.validDateSet(info.Blocks, date, date),
		Now:              s.slots.opts.Now(),
		Location:         s.slots.Location(),
		Offset:           s.opts.Offset,
	}
}

// owned fetches a booking the customer may change.
func (s *BookingService) owned(ctx context.Context, id string, customer models.Customer) (*models.Booking, error) {
	current, err := s.api.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mayManage(current, customer) {
		return nil, ErrForbidden
	}
	if current.IsCanceled {
		return nil, ErrBookingCanceled
	}
	return current, nil
}

func mayManage(b *models.Booking, customer models.Customer) bool {
	return b.CustomerID == customer.ID || strings.EqualFold(customer.Role, adminRole)
}

// confirmedLifecycle returns the tracked lifecycle of an existing booking,
// starting one in the confirmed state when none is tracked.
func (s *BookingService) confirmedLifecycle(bookingID string) *booking.Lifecycle {
	if lc := s.tracker.Get(bookingID); lc != nil {
		return lc
	}
	lc := booking.NewLifecycle(bookingID)
	lc.SetBookingID(bookingID)
	lc.SetState(booking.StateConfirmed, "loaded")
	s.tracker.Put(lc)
	return lc
}

func (s *BookingService) transition(ctx context.Context, lc *booking.Lifecycle, to booking.State, reason, customerID, resourceID string, w booking.Window) error {
	from := lc.GetState()
	if err := s.fsm.Transition(lc, to, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	s.record(ctx, lc, from, to, reason, customerID, resourceID, w)
	return nil
}

func (s *BookingService) reject(ctx context.Context, lc *booking.Lifecycle, cause error, customerID, resourceID string, w booking.Window) {
	reason := cause.Error()
	if err := s.transition(ctx, lc, booking.StateRejected, reason, customerID, resourceID, w); err != nil {
		s.logger.Warn().Err(err).Str("key", lc.Key).Msg("reject transition")
	}
	s.publish(events.BookingRejected, lc.BookingID, customerID, map[string]string{
		"key":    lc.Key,
		"reason": reason,
	})
	s.logger.Error().Err(cause).Str("key", lc.Key).Str("resource_id", resourceID).Msg("booking rejected by api")
}

func (s *BookingService) record(ctx context.Context, lc *booking.Lifecycle, from, to booking.State, reason, customerID, resourceID string, w booking.Window) {
	if s.journal == nil {
		return
	}
	entry := &journal.Entry{
		BookingID:  lc.BookingID,
		DraftKey:   lc.Key,
		CustomerID: customerID,
		ResourceID: resourceID,
		FromState:  string(from),
		ToState:    string(to),
		Reason:     reason,
		StartsAt:   w.StartsAt,
		EndsAt:     w.EndsAt,
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("key", lc.Key).Msg("failed to write journal")
	}
}

func (s *BookingService) publish(eventType, bookingID, customerID string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, bookingID, customerID, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}

func (s *BookingService) validationFailed(action string, err error) {
	if ve, ok := booking.AsValidationError(err); ok {
		metrics.IncValidationFailure(string(ve.Kind))
	}
	metrics.IncBookingAction(action, "invalid")
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBookingCanceled):
		return "canceled"
	case errors.Is(err, ErrLifecycle):
		return "busy"
	case bookingapi.IsNotFound(err):
		return "not_found"
	}
	return "upstream_error"
}
