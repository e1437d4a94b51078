// Package models holds the booking-domain records shared across packages.
package models

import (
	"fmt"
	"strings"
	"time"

	"bookingdesk/internal/timeutil"
)

// Booking is a reservation owned by the remote booking system.
type Booking struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resource_id"`
	ServiceID    string    `json:"service_id,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Price        string    `json:"price,omitempty"`
	IsCanceled   bool      `json:"is_canceled"`
}

// Active reports whether the booking still occupies its resource.
func (b *Booking) Active() bool {
	return !b.IsCanceled
}

// LocalDate returns the calendar date the booking starts on in loc.
func (b *Booking) LocalDate(loc *time.Location) timeutil.Date {
	return timeutil.DateOf(b.StartsAt, loc)
}

// Duration of the booking.
func (b *Booking) Duration() time.Duration {
	return b.EndsAt.Sub(b.StartsAt)
}

// Rate is one pricing entry of a resource.
type Rate struct {
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price"`
}

// Resource is a bookable room, hall or desk.
type Resource struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Type                    string `json:"type,omitempty"`
	Capacity                int    `json:"capacity,omitempty"`
	MaxSimultaneousBookings int    `json:"max_simultaneous_bookings,omitempty"`
	LocationID              string `json:"location_id,omitempty"`
	Timezone                string `json:"timezone,omitempty"`
	Rates                   []Rate `json:"rates,omitempty"`
}

// EffectiveCapacity is the number of bookings allowed to overlap.
func (r *Resource) EffectiveCapacity() int {
	if r.MaxSimultaneousBookings > 0 {
		return r.MaxSimultaneousBookings
	}
	return 1
}

// DefaultPrice is the first rate formatted with three decimals, "0.000" when
// the resource has no rates.
func (r *Resource) DefaultPrice() string {
	if len(r.Rates) == 0 {
		return "0.000"
	}
	return fmt.Sprintf("%.3f", r.Rates[0].Price)
}

// Service describes the booking granularity of a resource.
type Service struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Duration         string `json:"duration,omitempty"`          // ISO-8601, e.g. "PT1H"
	BookableInterval string `json:"bookable_interval,omitempty"` // ISO-8601, e.g. "PT30M"
}

// DurationMinutes is the default booking length.
func (s *Service) DurationMinutes() int {
	return timeutil.ParseISODuration(s.Duration)
}

// StepMinutes is the slot width used to display availability. It is
// independent of DurationMinutes.
func (s *Service) StepMinutes() int {
	if s == nil || s.BookableInterval == "" {
		return 15
	}
	return timeutil.ParseISODuration(s.BookableInterval)
}

// Customer is the signed-in user as known to the identity provider.
type Customer struct {
	ID    string `json:"id"` // email
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// DisplayNameFor picks a customer name: username, else the email local part.
func DisplayNameFor(username, email string) string {
	if strings.TrimSpace(username) != "" {
		return username
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
