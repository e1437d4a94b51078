// Package api exposes the booking services to the web UI as JSON over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/models"
	"bookingdesk/internal/service"
	"bookingdesk/internal/timeutil"
)

// SlotViewer computes resource availability.
type SlotViewer interface {
	Resources(ctx context.Context) ([]models.Resource, error)
	DayView(ctx context.Context, resourceID string, date timeutil.Date) (*service.DayView, error)
	Grid(ctx context.Context, resourceID string, date timeutil.Date) (*service.GridView, error)
	ValidDates(ctx context.Context, resourceID string, from, to timeutil.Date) ([]timeutil.Date, error)
	Today() timeutil.Date
}

// BookingManager changes and lists a customer's bookings.
type BookingManager interface {
	Create(ctx context.Context, in service.CreateInput) (*service.Result, error)
	Update(ctx context.Context, in service.UpdateInput) (*service.Result, error)
	Cancel(ctx context.Context, bookingID string, customer models.Customer) error
	History(ctx context.Context, customer models.Customer, f booking.HistoryFilter) ([]booking.HistoryEntry, error)
	Activity(ctx context.Context, customer models.Customer, limit int) ([]journal.Entry, error)
	BookingActivity(ctx context.Context, bookingID string, customer models.Customer) ([]journal.Entry, error)
	Export(ctx context.Context, w io.Writer, customer models.Customer, f booking.HistoryFilter) error
}

// CustomerDirectory resolves the signed-in user.
type CustomerDirectory interface {
	Lookup(ctx context.Context, email string) (*models.Customer, error)
}

// Options configures the HTTP server.
type Options struct {
	Port        int
	APIKey      string // X-Api-Key is required when set
	ValidDays   int
	ReadTimeout time.Duration
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	server    *http.Server
	slots     SlotViewer
	bookings  BookingManager
	customers CustomerDirectory
	loader    *service.Loader
	opts      Options
	logger    zerolog.Logger
}

// NewHTTPServer wires routes and middleware. customers may be nil, in which
// case the X-User-Email header alone identifies the customer.
func NewHTTPServer(opts Options, slots SlotViewer, bookings BookingManager, customers CustomerDirectory, logger *zerolog.Logger) *HTTPServer {
	if opts.ValidDays <= 0 {
		opts.ValidDays = 365
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}

	s := &HTTPServer{
		slots:     slots,
		bookings:  bookings,
		customers: customers,
		loader:    service.NewLoader(service.DefaultRequestTimeout),
		opts:      opts,
		logger:    logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/resources", s.handleResources)
	mux.HandleFunc("GET /api/resources/{id}/slots", s.handleDaySlots)
	mux.HandleFunc("GET /api/resources/{id}/grid", s.handleGrid)
	mux.HandleFunc("GET /api/resources/{id}/dates", s.handleValidDates)
	mux.Handle("POST /api/bookings", s.withCustomer(s.handleCreateBooking))
	mux.Handle("PATCH /api/bookings/{id}", s.withCustomer(s.handleUpdateBooking))
	mux.Handle("DELETE /api/bookings/{id}", s.withCustomer(s.handleCancelBooking))
	mux.Handle("GET /api/bookings/{id}/activity", s.withCustomer(s.handleBookingActivity))
	mux.Handle("GET /api/me/bookings", s.withCustomer(s.handleMyBookings))
	mux.Handle("GET /api/me/bookings/export", s.withCustomer(s.handleExport))
	mux.Handle("GET /api/me/activity", s.withCustomer(s.handleActivity))

	handler := chain(mux,
		withRequestID,
		withAccessLog(&s.logger),
		withAPIKey(opts.APIKey),
		withBodyLimit(1<<20),
	)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           otelhttp.NewHandler(handler, "bookingdesk.api"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("api server started")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
