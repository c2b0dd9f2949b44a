// ABOUTME: Tests for the session service.
// ABOUTME: Covers allocation, release exactly once, status steps, history and participants.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/dashboard"
	"github.com/2389/coven-contactcenter/internal/skill"
	"github.com/2389/coven-contactcenter/internal/store"
)

var language = skill.New("Language", []string{"English", "Spanish"}, skill.Prompts{})

type fixture struct {
	manager *agent.Manager
	store   *store.MockStore
	svc     *Service
}

func newFixture(t *testing.T, agents ...*agent.Agent) *fixture {
	t.Helper()
	m := agent.NewManager(nil)
	for _, a := range agents {
		require.NoError(t, m.Register(a))
		a.SetOnline(true)
	}
	st := store.NewMockStore()
	router := agent.NewRouter(m, agent.RouterOptions{}, nil)
	return &fixture{manager: m, store: st, svc: New(router, st, nil)}
}

func speaker(address, lang string) *agent.Agent {
	return agent.New(agent.Params{
		SignInAddress: address,
		Skills:        []skill.AgentSkill{skill.MustAgentSkill(language, lang)},
	})
}

func TestService_StartAndEnd(t *testing.T) {
	alice := speaker("alice@contoso.com", "English")
	f := newFixture(t, alice)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartRequest{
		Customer:   "cust-1",
		Required:   []skill.AgentSkill{skill.MustAgentSkill(language, "english")},
		MediaTypes: []string{"audio"},
	})
	require.NoError(t, err)
	assert.Same(t, alice, sess.Agent)
	assert.Equal(t, sess.Owner, alice.Owner())
	assert.Equal(t, agent.AllocatedByMatchMaker, sess.Status())

	got, err := f.svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, f.svc.End(ctx, sess.ID))
	assert.False(t, alice.IsAllocated())

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session context not cancelled on release")
	}

	err = f.svc.End(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	events, err := f.store.ListAllocationEvents(ctx, store.AllocationFilter{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.ActionReleased, events[0].Action)
	assert.Equal(t, store.ActionAllocated, events[1].Action)
	assert.Equal(t, []string{"Language=English"}, events[1].Skills)
	assert.Equal(t, "sip:alice@contoso.com", events[1].AgentAddress)
}

func TestService_StartNoAgent(t *testing.T) {
	f := newFixture(t, speaker("alice@contoso.com", "English"))
	ctx := context.Background()

	_, err := f.svc.Start(ctx, StartRequest{
		Customer: "cust-1",
		Required: []skill.AgentSkill{skill.MustAgentSkill(language, "Spanish")},
	})
	assert.ErrorIs(t, err, agent.ErrNoAgentsAvailable)

	events, err := f.store.ListAllocationEvents(ctx, store.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.ActionRejected, events[0].Action)
	assert.Empty(t, events[0].AgentAddress)
	assert.Empty(t, f.svc.List())
}

func TestService_StartCancelledContext(t *testing.T) {
	f := newFixture(t, speaker("alice@contoso.com", "English"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Start(ctx, StartRequest{Customer: "cust-1"})
	assert.ErrorIs(t, err, context.Canceled)

	// Cancellation is not a rejection.
	events, _ := f.store.ListAllocationEvents(context.Background(), store.AllocationFilter{})
	assert.Empty(t, events)
}

func TestService_StatusSteps(t *testing.T) {
	alice := speaker("alice@contoso.com", "English")
	f := newFixture(t, alice)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartRequest{Customer: "cust-1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Escalate(ctx, sess.ID))
	assert.Equal(t, agent.EscalatingTheAgent, alice.AllocationStatus())

	require.NoError(t, f.svc.Commit(ctx, sess.ID))
	assert.Equal(t, agent.CommittingTheAgent, alice.AllocationStatus())

	require.NoError(t, f.svc.AssignToOwner(ctx, sess.ID))
	assert.Equal(t, agent.AssigningTheAgentToItsOwner, alice.AllocationStatus())

	err = f.svc.SetStatus(ctx, sess.ID, agent.NotAllocated)
	assert.ErrorIs(t, err, agent.ErrInvalidStatus)

	err = f.svc.Escalate(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	events, err := f.store.ListAllocationEvents(ctx, store.AllocationFilter{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "assigning_to_owner", events[0].Status)
	assert.Equal(t, store.ActionStatusChanged, events[0].Action)
}

func TestService_HistoryFailureKeepsAllocation(t *testing.T) {
	alice := speaker("alice@contoso.com", "English")
	f := newFixture(t, alice)
	f.store.Err = errors.New("disk full")
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartRequest{Customer: "cust-1"})
	require.NoError(t, err)
	assert.True(t, alice.IsAllocated())

	require.NoError(t, f.svc.End(ctx, sess.ID))
	assert.False(t, alice.IsAllocated())
}

func TestService_Participant(t *testing.T) {
	alice := speaker("alice@contoso.com", "English")
	f := newFixture(t, alice)
	ctx := context.Background()

	_, ok := f.svc.Participant("alice@contoso.com")
	assert.False(t, ok)

	sess, err := f.svc.Start(ctx, StartRequest{Customer: "cust-1", MediaTypes: []string{"audio", "im"}})
	require.NoError(t, err)

	p, ok := f.svc.Participant("SIP:Alice@Contoso.com")
	require.True(t, ok)
	assert.Equal(t, sess.ID, p.SessionID)
	assert.Equal(t, "cust-1", p.Customer)
	assert.Equal(t, []string{"audio", "im"}, p.MediaTypes)

	require.NoError(t, f.svc.End(ctx, sess.ID))
	_, ok = f.svc.Participant("alice@contoso.com")
	assert.False(t, ok)
}

// pollingAllocator runs a dashboard poll as soon as an agent is allocated,
// before the service has stored the session.
type pollingAllocator struct {
	next   Allocator
	poller *dashboard.Poller
}

func (p *pollingAllocator) Allocate(ctx context.Context, owner agent.Owner, required []skill.AgentSkill) (*agent.Agent, error) {
	a, err := p.next.Allocate(ctx, owner, required)
	if err == nil {
		p.poller.Poll()
	}
	return a, err
}

func TestService_DashboardSeesParticipantAfterStart(t *testing.T) {
	alice := speaker("alice@contoso.com", "English")
	m := agent.NewManager(nil)
	require.NoError(t, m.Register(alice))
	alice.SetOnline(true)

	b := dashboard.NewBroadcaster(nil)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	records, _ := b.Subscribe(ctx, dashboard.AllAgents)

	alloc := &pollingAllocator{next: agent.NewRouter(m, agent.RouterOptions{}, nil)}
	svc := New(alloc, store.NewMockStore(), nil)
	alloc.poller = dashboard.NewPoller(m, svc, b, time.Hour, nil)

	sess, err := svc.Start(ctx, StartRequest{Customer: "cust-1", MediaTypes: []string{"audio"}})
	require.NoError(t, err)

	early := <-records
	assert.True(t, early.Allocated)
	assert.Empty(t, early.SessionID)

	require.Equal(t, 1, alloc.poller.Poll(), "agent must be republished once the session is stored")
	rec := <-records
	assert.Equal(t, sess.ID, rec.SessionID)
	assert.Equal(t, "cust-1", rec.Customer)
	assert.Equal(t, []string{"audio"}, rec.MediaTypes)
}

func TestService_ConcurrentSessions(t *testing.T) {
	agents := []*agent.Agent{
		speaker("a@contoso.com", "English"),
		speaker("b@contoso.com", "English"),
		speaker("c@contoso.com", "English"),
	}
	f := newFixture(t, agents...)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []*Session
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := f.svc.Start(ctx, StartRequest{Customer: "c"})
			if err != nil {
				assert.ErrorIs(t, err, agent.ErrNoAgentsAvailable)
				return
			}
			mu.Lock()
			started = append(started, sess)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, started, len(agents))
	assert.Len(t, f.svc.List(), len(agents))

	for _, sess := range started {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, f.svc.End(ctx, id))
		}(sess.ID)
	}
	wg.Wait()

	_, _, allocated := f.manager.Counts()
	assert.Equal(t, 0, allocated)
	assert.Empty(t, f.svc.List())
}
