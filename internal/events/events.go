// Package events is the in-process notification bus for booking changes.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Booking event types.
const (
	BookingCreated  = "booking.created"
	BookingUpdated  = "booking.updated"
	BookingCanceled = "booking.canceled"
	BookingRejected = "booking.rejected"
	BookingReminder = "booking.reminder"
)

// Event represents a lightweight domain event.
type Event struct {
	Type       string
	BookingID  string
	CustomerID string
	Payload    []byte
	CreatedAt  time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	all         []EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish notifies subscribers of the event type and returns the first
// handler error. Every handler runs even if an earlier one fails.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON marshals payload and publishes it.
func (b *EventBus) PublishJSON(eventType, bookingID, customerID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(Event{Type: eventType, BookingID: bookingID, CustomerID: customerID, Payload: data})
}
