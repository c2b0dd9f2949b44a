// ABOUTME: Tracker applies presence events to directory agents and persists them.
// ABOUTME: Duplicate events are dropped; unknown agents are reported with ErrUnknownAgent.

package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/store"
)

// Presence errors.
var (
	ErrUnknownAgent        = errors.New("unknown agent")
	ErrInvalidAvailability = errors.New("invalid availability")
)

// Availability is the state reported by a presence source.
type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityBusy    Availability = "busy"
	AvailabilityAway    Availability = "away"
	AvailabilityOffline Availability = "offline"
)

// ParseAvailability accepts the availability names case-insensitively.
func ParseAvailability(s string) (Availability, error) {
	switch a := Availability(strings.ToLower(strings.TrimSpace(s))); a {
	case AvailabilityOnline, AvailabilityBusy, AvailabilityAway, AvailabilityOffline:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAvailability, s)
	}
}

// SignedIn reports whether the availability counts as signed in. Away
// agents are treated as signed out so the router skips them.
func (a Availability) SignedIn() bool {
	return a == AvailabilityOnline || a == AvailabilityBusy
}

// Event is one presence notification for an agent.
type Event struct {
	// ID identifies the notification for deduplication. Events without an
	// ID are always applied.
	ID           string
	Agent        string
	Availability Availability
	At           time.Time
}

// Directory is the part of the agent directory the tracker needs.
type Directory interface {
	GetAgent(address string) (*agent.Agent, bool)
}

// Options configures a Tracker.
type Options struct {
	DedupeTTL  time.Duration
	DedupeSize int
	Now        func() time.Time
}

// Tracker applies presence events to agents.
type Tracker struct {
	dir    Directory
	store  store.Store
	seen   *seenCache
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	lastAt map[string]time.Time // agent address -> time of the last applied event
}

// NewTracker creates a Tracker. st may be nil to skip persistence.
func NewTracker(dir Directory, st store.Store, opts Options, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 5 * time.Minute
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 10000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		dir:    dir,
		store:  st,
		seen:   newSeenCache(opts.DedupeTTL, opts.DedupeSize, opts.Now),
		now:    opts.Now,
		logger: logger.With("component", "presence"),
		lastAt: make(map[string]time.Time),
	}
}

// Apply sets the agent's online flag from ev. It returns false without error
// when ev is a duplicate or older than the last event applied to the agent.
func (t *Tracker) Apply(ctx context.Context, ev Event) (bool, error) {
	if _, err := ParseAvailability(string(ev.Availability)); err != nil {
		return false, err
	}

	a, ok := t.dir.GetAgent(ev.Agent)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAgent, ev.Agent)
	}

	if ev.ID != "" && t.seen.checkAndMark(ev.ID) {
		t.logger.Debug("duplicate presence event dropped", "event_id", ev.ID, "agent", a.SignInAddress())
		return false, nil
	}

	at := ev.At
	if at.IsZero() {
		at = t.now()
	}
	at = at.UTC()

	t.mu.Lock()
	if last, ok := t.lastAt[a.SignInAddress()]; ok && at.Before(last) {
		t.mu.Unlock()
		t.logger.Debug("stale presence event dropped",
			"agent", a.SignInAddress(),
			"event_at", at,
			"last_at", last,
		)
		return false, nil
	}
	t.lastAt[a.SignInAddress()] = at
	online := ev.Availability.SignedIn()
	a.SetOnline(online)
	t.mu.Unlock()

	t.logger.Info("presence applied",
		"agent", a.SignInAddress(),
		"availability", ev.Availability,
		"online", online,
	)

	if t.store != nil {
		p := &store.Presence{AgentAddress: a.SignInAddress(), Online: online, UpdatedAt: at}
		if err := t.store.SetPresence(ctx, p); err != nil {
			t.logger.Error("failed to persist presence", "agent", a.SignInAddress(), "error", err)
		}
	}
	return true, nil
}

// Restore applies stored presence to the directory. Rows for agents that
// are no longer configured are skipped. Returns the number restored.
func (t *Tracker) Restore(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	rows, err := t.store.ListPresence(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing presence: %w", err)
	}

	n := 0
	for _, p := range rows {
		a, ok := t.dir.GetAgent(p.AgentAddress)
		if !ok {
			t.logger.Debug("skipping presence for unknown agent", "agent", p.AgentAddress)
			continue
		}
		t.mu.Lock()
		if last, ok := t.lastAt[a.SignInAddress()]; !ok || !p.UpdatedAt.Before(last) {
			t.lastAt[a.SignInAddress()] = p.UpdatedAt
			a.SetOnline(p.Online)
		}
		t.mu.Unlock()
		n++
	}
	t.logger.Info("presence restored", "agents", n)
	return n, nil
}

// Close stops the seen-cache cleanup goroutine.
func (t *Tracker) Close() {
	t.seen.close()
}
