package booking

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// State is the client-observed lifecycle state of a booking.
type State string

const (
	StateDraft      State = "draft"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateRejected   State = "rejected"
	StateEditing    State = "editing"
	StateCanceled   State = "canceled"
)

// Lifecycle tracks one booking (or draft) through its states.
type Lifecycle struct {
	Key       string
	BookingID string
	State     State
	Reason    string
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewLifecycle starts a lifecycle in the draft state.
func NewLifecycle(key string) *Lifecycle {
	now := time.Now()
	return &Lifecycle{
		Key:       key,
		State:     StateDraft,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the state and the reason for it.
func (l *Lifecycle) SetState(state State, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.State = state
	l.Reason = reason
	l.UpdatedAt = time.Now()
}

// GetState returns current state.
func (l *Lifecycle) GetState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State
}

// SetBookingID records the id assigned by the booking API.
func (l *Lifecycle) SetBookingID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.BookingID = id
}

// IsExpired checks if the lifecycle has been idle longer than timeout.
func (l *Lifecycle) IsExpired(timeout time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.UpdatedAt) > timeout
}

// FSM holds the allowed lifecycle transitions.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the booking lifecycle machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateDraft:      {StateSubmitting},
			StateSubmitting: {StateConfirmed, StateRejected},
			StateRejected:   {StateDraft, StateSubmitting},
			StateConfirmed:  {StateEditing, StateCanceled},
			StateEditing:    {StateSubmitting, StateConfirmed},
			StateCanceled:   {},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	return slices.Contains(f.transitions[from], to)
}

// Transition moves l to the given state or reports why it cannot.
func (f *FSM) Transition(l *Lifecycle, to State, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !f.CanTransition(l.State, to) {
		return fmt.Errorf("booking %s: cannot move from %s to %s", l.Key, l.State, to)
	}
	l.State = to
	l.Reason = reason
	l.UpdatedAt = time.Now()
	return nil
}

// Tracker keeps lifecycles by key and forgets idle ones.
type Tracker struct {
	items   map[string]*Lifecycle
	mu      sync.RWMutex
	timeout time.Duration
}

// NewTracker creates a tracker. A non-positive timeout means 30 minutes.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Tracker{
		items:   make(map[string]*Lifecycle),
		timeout: timeout,
	}
}

// Get returns the lifecycle for key, or nil.
func (t *Tracker) Get(key string) *Lifecycle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items[key]
}

// GetOrCreate returns the live lifecycle for key or starts a new draft.
func (t *Tracker) GetOrCreate(key string) *Lifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.items[key]
	if ok && !l.IsExpired(t.timeout) {
		return l
	}
	l = NewLifecycle(key)
	t.items[key] = l
	return l
}

// Put stores a lifecycle under its key.
func (t *Tracker) Put(l *Lifecycle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[l.Key] = l
}

// Delete removes a lifecycle.
func (t *Tracker) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
}

// Cleanup removes expired lifecycles.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, l := range t.items {
		if l.IsExpired(t.timeout) {
			delete(t.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked lifecycles.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
