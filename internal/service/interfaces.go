// Package service orchestrates the booking API, the availability engine and
// the local journal for the HTTP layer.
package service

import (
	"context"

	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
)

// BookingAPI is the subset of the remote booking API the services use.
type BookingAPI interface {
	ListResources(ctx context.Context) ([]models.Resource, error)
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	GetScheduleBlocks(ctx context.Context, resourceName string, weekday schedule.Weekday) ([]schedule.Block, error)
	GetServiceIDForResource(ctx context.Context, resourceID string) (string, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListBookings(ctx context.Context, f bookingapi.BookingFilter) ([]models.Booking, error)
	ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CreateBooking(ctx context.Context, req bookingapi.CreateBookingRequest) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, req bookingapi.UpdateBookingRequest) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	InvalidateResource(ctx context.Context, resourceName, resourceID string)
}

// Journal stores lifecycle transitions.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]journal.Entry, error)
	ListByBooking(ctx context.Context, bookingID string) ([]journal.Entry, error)
}

// Publisher fans booking events out to in-process subscribers.
type Publisher interface {
	PublishJSON(eventType, bookingID, customerID string, payload any) error
}
