// Package reminders announces bookings that are about to start.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/events"
	"bookingdesk/internal/metrics"
	"bookingdesk/internal/models"
)

const claimPrefix = "bookingdesk:reminder:"

// BookingLister is the part of the booking API the scheduler reads.
type BookingLister interface {
	ListBookings(ctx context.Context, f bookingapi.BookingFilter) ([]models.Booking, error)
}

// Publisher delivers reminder events.
type Publisher interface {
	PublishJSON(eventType, bookingID, customerID string, payload any) error
}

// Config holds the scheduler settings.
type Config struct {
	// Lead is how far ahead of the start a reminder goes out.
	Lead time.Duration
	// CheckInterval is how often bookings are polled.
	CheckInterval time.Duration
}

// Payload is the body of a booking.reminder event.
type Payload struct {
	ResourceID   string    `json:"resource_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Minutes      int       `json:"duration_minutes"`
	MinutesLeft  int       `json:"minutes_left"`
}

// Scheduler polls bookings and publishes one reminder per booking start.
type Scheduler struct {
	config Config
	api    BookingLister
	pub    Publisher
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time // claim key -> booking start
}

func NewScheduler(cfg Config, api BookingLister, pub Publisher, logger *zerolog.Logger) *Scheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = time.Hour
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	return &Scheduler{
		config: cfg,
		api:    api,
		pub:    pub,
		logger: logger.With().Str("component", "reminders").Logger(),
		now:    time.Now,
		sent:   make(map[string]time.Time),
	}
}

// UseRedis shares sent-reminder claims across instances.
func (s *Scheduler) UseRedis(client *redis.Client) {
	s.redis = client
}

// Start runs until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("lead", s.config.Lead).
		Dur("interval", s.config.CheckInterval).
		Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reminder run failed")
			}
		}
	}
}

// RunOnce publishes reminders for active bookings starting within the lead
// window and returns how many went out.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	bookings, err := s.api.ListBookings(ctx, bookingapi.BookingFilter{})
	if err != nil {
		return 0, fmt.Errorf("list bookings: %w", err)
	}

	now := s.now()
	s.forget(now)

	sent := 0
	for i := range bookings {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		b := &bookings[i]
		if !b.Active() || !b.StartsAt.After(now) || b.StartsAt.Sub(now) > s.config.Lead {
			continue
		}

		acquired, err := s.claim(ctx, b)
		if err != nil {
			s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("failed to claim reminder")
			metrics.IncReminder("error")
			continue
		}
		if !acquired {
			continue
		}

		payload := Payload{
			ResourceID:   b.ResourceID,
			CustomerName: b.CustomerName,
			StartsAt:     b.StartsAt,
			EndsAt:       b.EndsAt,
			Minutes:      int(b.Duration().Minutes()),
			MinutesLeft:  int(b.StartsAt.Sub(now).Minutes()),
		}
		if err := s.pub.PublishJSON(events.BookingReminder, b.ID, b.CustomerID, payload); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("reminder handler failed")
			metrics.IncReminder("failed")
			continue
		}
		metrics.IncReminder("sent")
		sent++
	}

	if sent > 0 {
		s.logger.Info().Int("sent", sent).Msg("reminders published")
	}
	return sent, nil
}

// claimKey includes the start so a rescheduled booking is reminded again.
func claimKey(b *models.Booking) string {
	return claimPrefix + b.ID + ":" + b.StartsAt.UTC().Format(time.RFC3339)
}

// claim marks the reminder as sent. With Redis the claim is a SETNX that
// expires after the booking starts.
func (s *Scheduler) claim(ctx context.Context, b *models.Booking) (bool, error) {
	key := claimKey(b)

	s.mu.Lock()
	_, seen := s.sent[key]
	s.mu.Unlock()
	if seen {
		return false, nil
	}

	if s.redis != nil {
		ttl := b.StartsAt.Sub(s.now()) + s.config.Lead
		ok, err := s.redis.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	s.mu.Lock()
	s.sent[key] = b.StartsAt
	s.mu.Unlock()
	return true, nil
}

func (s *Scheduler) forget(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, startsAt := range s.sent {
		if startsAt.Before(now) {
			delete(s.sent, key)
		}
	}
}
