// ABOUTME: Circuit breaker around Store writes
// ABOUTME: A failing database fails fast instead of stalling every allocation

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default breaker settings.
const (
	DefaultBreakerFailures uint32 = 5
	DefaultBreakerTimeout         = 30 * time.Second
)

// ErrCircuitOpen is returned while the breaker is refusing writes.
var ErrCircuitOpen = errors.New("store circuit open")

// BreakerOptions configures a BreakerStore. Zero values use the defaults.
type BreakerOptions struct {
	// MaxFailures is the number of consecutive write failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
}

// BreakerStore wraps a Store so that writes go through a circuit breaker.
// Reads and Close pass straight through.
type BreakerStore struct {
	Store
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerStore wraps inner.
func NewBreakerStore(inner Store, opts BreakerOptions, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerFailures
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultBreakerTimeout
	}
	logger = logger.With("component", "store")

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A missing row is an answer, not a database failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return &BreakerStore{Store: inner, breaker: cb}
}

func (b *BreakerStore) execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}

// SaveAllocationEvent implements Store.
func (b *BreakerStore) SaveAllocationEvent(ctx context.Context, e *AllocationEvent) error {
	return b.execute(func() error { return b.Store.SaveAllocationEvent(ctx, e) })
}

// PruneAllocationEvents implements Store.
func (b *BreakerStore) PruneAllocationEvents(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := b.execute(func() error {
		var err error
		n, err = b.Store.PruneAllocationEvents(ctx, before)
		return err
	})
	return n, err
}

// SetPresence implements Store.
func (b *BreakerStore) SetPresence(ctx context.Context, p *Presence) error {
	return b.execute(func() error { return b.Store.SetPresence(ctx, p) })
}

// State reports the breaker state for health output.
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}
