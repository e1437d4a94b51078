package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookingdesk/internal/metrics"
)

// DefaultRequestTimeout bounds a single view load.
const DefaultRequestTimeout = 10 * time.Second

// ErrStale is returned by a load that was superseded by a newer load for the
// same key.
var ErrStale = errors.New("service: load superseded by a newer request")

// Loader correlates loads with the view they were started for. Starting a
// load cancels the in-flight one for the same key, and a load that finishes
// after being superseded reports ErrStale instead of its result.
type Loader struct {
	timeout time.Duration

	// next is shared by all keys so a pruned key never sees a sequence
	// number it handed out before.
	mu      sync.Mutex
	next    uint64
	latest  map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewLoader creates a loader. A non-positive timeout means DefaultRequestTimeout.
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Loader{
		timeout: timeout,
		latest:  make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (l *Loader) begin(ctx context.Context, key string) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cancel, ok := l.cancels[key]; ok {
		cancel()
	}
	l.next++
	l.latest[key] = l.next
	loadCtx, cancel := context.WithTimeout(ctx, l.timeout)
	l.cancels[key] = cancel
	return loadCtx, l.next
}

// finish reports whether seq is still the latest load for key. The latest
// load drops the key's bookkeeping when it finishes.
func (l *Loader) finish(key string, seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.latest[key] != seq {
		return false
	}
	if cancel, ok := l.cancels[key]; ok {
		cancel()
		delete(l.cancels, key)
	}
	delete(l.latest, key)
	return true
}

// Pending returns the number of keys with a load in flight.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.latest)
}

// Load runs fn under the loader's guard for key.
func Load[T any](l *Loader, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	loadCtx, seq := l.begin(ctx, key)
	res, err := fn(loadCtx)

	if !l.finish(key, seq) {
		metrics.IncStaleLoad()
		var zero T
		return zero, ErrStale
	}
	return res, err
}
