// ABOUTME: Tests for applying presence events to the agent directory.
// ABOUTME: Covers dedupe, unknown agents, persistence and restore.

package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/store"
)

func newDirectory(t *testing.T, addresses ...string) *agent.Manager {
	t.Helper()
	m := agent.NewManager(nil)
	for _, addr := range addresses {
		require.NoError(t, m.Register(agent.New(agent.Params{SignInAddress: addr})))
	}
	return m
}

func TestTracker_Apply(t *testing.T) {
	dir := newDirectory(t, "alice@contoso.com")
	st := store.NewMockStore()
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()
	ctx := context.Background()

	applied, err := tracker.Apply(ctx, Event{ID: "1", Agent: "Alice@Contoso.com", Availability: AvailabilityOnline})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, dir.IsOnline("alice@contoso.com"))

	p, err := st.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.True(t, p.Online)

	applied, err = tracker.Apply(ctx, Event{ID: "2", Agent: "alice@contoso.com", Availability: AvailabilityAway})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, dir.IsOnline("alice@contoso.com"))
}

func TestTracker_DropsDuplicates(t *testing.T) {
	dir := newDirectory(t, "alice@contoso.com")
	tracker := NewTracker(dir, nil, Options{}, nil)
	defer tracker.Close()
	ctx := context.Background()

	_, err := tracker.Apply(ctx, Event{ID: "1", Agent: "alice@contoso.com", Availability: AvailabilityOnline})
	require.NoError(t, err)

	// A redelivered sign-out with an already seen ID must not take effect.
	applied, err := tracker.Apply(ctx, Event{ID: "1", Agent: "alice@contoso.com", Availability: AvailabilityOffline})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, dir.IsOnline("alice@contoso.com"))

	// Events without an ID are never deduplicated.
	applied, err = tracker.Apply(ctx, Event{Agent: "alice@contoso.com", Availability: AvailabilityOffline})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, dir.IsOnline("alice@contoso.com"))
}

func TestTracker_UnknownAgent(t *testing.T) {
	tracker := NewTracker(newDirectory(t), nil, Options{}, nil)
	defer tracker.Close()

	_, err := tracker.Apply(context.Background(), Event{Agent: "ghost@contoso.com", Availability: AvailabilityOnline})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestTracker_InvalidAvailability(t *testing.T) {
	tracker := NewTracker(newDirectory(t, "alice@contoso.com"), nil, Options{}, nil)
	defer tracker.Close()

	_, err := tracker.Apply(context.Background(), Event{Agent: "alice@contoso.com", Availability: "dancing"})
	assert.ErrorIs(t, err, ErrInvalidAvailability)
}

func TestTracker_OfflineKeepsAllocation(t *testing.T) {
	dir := newDirectory(t, "alice@contoso.com")
	tracker := NewTracker(dir, nil, Options{}, nil)
	defer tracker.Close()
	ctx := context.Background()

	a, _ := dir.GetAgent("alice@contoso.com")
	owner := agent.NewOwner()
	require.NoError(t, a.Allocate(owner))

	_, err := tracker.Apply(ctx, Event{Agent: "alice@contoso.com", Availability: AvailabilityOffline})
	require.NoError(t, err)

	assert.True(t, a.IsAllocated())
	assert.Equal(t, owner, a.Owner())
}

func TestTracker_PersistFailureStillApplies(t *testing.T) {
	dir := newDirectory(t, "alice@contoso.com")
	st := store.NewMockStore()
	st.Err = errors.New("disk full")
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()

	applied, err := tracker.Apply(context.Background(), Event{Agent: "alice@contoso.com", Availability: AvailabilityBusy})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, dir.IsOnline("alice@contoso.com"))
}

func TestTracker_Restore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	require.NoError(t, st.SetPresence(ctx, &store.Presence{AgentAddress: "sip:alice@contoso.com", Online: true}))
	require.NoError(t, st.SetPresence(ctx, &store.Presence{AgentAddress: "sip:bob@contoso.com", Online: false}))
	require.NoError(t, st.SetPresence(ctx, &store.Presence{AgentAddress: "sip:retired@contoso.com", Online: true}))

	dir := newDirectory(t, "alice@contoso.com", "bob@contoso.com")
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()

	n, err := tracker.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, dir.IsOnline("alice@contoso.com"))
	assert.False(t, dir.IsOnline("bob@contoso.com"))
}

func TestTracker_UsesEventTime(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	dir := newDirectory(t, "alice@contoso.com")
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	_, err := tracker.Apply(ctx, Event{Agent: "alice@contoso.com", Availability: AvailabilityOnline, At: at})
	require.NoError(t, err)

	p, err := st.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.True(t, at.Equal(p.UpdatedAt))
}

func TestTracker_IgnoresOlderEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	dir := newDirectory(t, "alice@contoso.com")
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()

	t1 := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	t0 := t1.Add(-time.Minute)

	applied, err := tracker.Apply(ctx, Event{ID: "b", Agent: "alice@contoso.com", Availability: AvailabilityOnline, At: t1})
	require.NoError(t, err)
	assert.True(t, applied)

	// The sign-out happened first but arrived late.
	applied, err = tracker.Apply(ctx, Event{ID: "a", Agent: "alice@contoso.com", Availability: AvailabilityOffline, At: t0})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, dir.IsOnline("alice@contoso.com"))

	p, err := st.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.True(t, p.Online)
	assert.True(t, t1.Equal(p.UpdatedAt))

	applied, err = tracker.Apply(ctx, Event{ID: "c", Agent: "alice@contoso.com", Availability: AvailabilityAway, At: t1})
	require.NoError(t, err)
	assert.True(t, applied, "an event at the same instant still applies")
	assert.False(t, dir.IsOnline("alice@contoso.com"))
}

func TestTracker_RestoreSeedsEventOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	t1 := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, st.SetPresence(ctx, &store.Presence{AgentAddress: "sip:alice@contoso.com", Online: true, UpdatedAt: t1}))

	dir := newDirectory(t, "alice@contoso.com")
	tracker := NewTracker(dir, st, Options{}, nil)
	defer tracker.Close()

	_, err := tracker.Restore(ctx)
	require.NoError(t, err)

	applied, err := tracker.Apply(ctx, Event{Agent: "alice@contoso.com", Availability: AvailabilityOffline, At: t1.Add(-time.Second)})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, dir.IsOnline("alice@contoso.com"))
}

func TestParseAvailability(t *testing.T) {
	a, err := ParseAvailability(" Busy ")
	require.NoError(t, err)
	assert.Equal(t, AvailabilityBusy, a)
	assert.True(t, a.SignedIn())
	assert.False(t, AvailabilityAway.SignedIn())

	_, err = ParseAvailability("")
	assert.ErrorIs(t, err, ErrInvalidAvailability)
}
