// ABOUTME: Session service allocates agents to customer sessions and releases them.
// ABOUTME: Each step is recorded in the allocation history; history failures are only logged.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/dashboard"
	"github.com/2389/coven-contactcenter/internal/skill"
	"github.com/2389/coven-contactcenter/internal/store"
)

// ErrSessionNotFound is returned for unknown or already ended sessions.
var ErrSessionNotFound = errors.New("session not found")

// Allocator finds and claims an agent for an owner.
type Allocator interface {
	Allocate(ctx context.Context, owner agent.Owner, required []skill.AgentSkill) (*agent.Agent, error)
}

// HistoryStore defines what the service needs from storage
type HistoryStore interface {
	SaveAllocationEvent(ctx context.Context, event *store.AllocationEvent) error
}

// Session is one customer being served by one agent. Fields are fixed at
// Start.
type Session struct {
	ID         string
	Owner      agent.Owner
	Customer   string
	Agent      *agent.Agent
	Required   []skill.AgentSkill
	MediaTypes []string
	StartedAt  time.Time

	// ctx is cancelled when the agent is released.
	ctx context.Context
}

// Done is closed once the session's agent has been released.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Status returns the agent's current allocation stage.
func (s *Session) Status() agent.AllocationStatus {
	return s.Agent.AllocationStatus()
}

// StartRequest describes a customer asking for an agent.
type StartRequest struct {
	Customer   string
	Required   []skill.AgentSkill
	MediaTypes []string
}

// Service tracks live sessions.
type Service struct {
	alloc  Allocator
	store  HistoryStore
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session // keyed by session ID
	byAgent  map[string]*Session // keyed by agent sign-in address
}

// New creates a session Service. st may be nil to skip history.
func New(alloc Allocator, st HistoryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		alloc:    alloc,
		store:    st,
		logger:   logger.With("component", "session"),
		sessions: make(map[string]*Session),
		byAgent:  make(map[string]*Session),
	}
}

// Start allocates an agent with the required skills to a new session.
// When no agent can be allocated the attempt is recorded as rejected and
// the allocator's error is returned.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	id := uuid.New().String()
	owner := agent.NewOwner()
	skills := skillStrings(req.Required)

	a, err := s.alloc.Allocate(ctx, owner, req.Required)
	if err != nil {
		if errors.Is(err, agent.ErrNoAgentsAvailable) {
			s.saveEvent(&store.AllocationEvent{
				SessionID: id,
				Customer:  req.Customer,
				Action:    store.ActionRejected,
				Status:    agent.NotAllocated.String(),
				Skills:    skills,
			})
		}
		return nil, fmt.Errorf("allocating agent: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	if err := a.AttachPending(owner, cancel); err != nil {
		// Only possible if the agent was released between Allocate and
		// here, which nothing but this session can do.
		cancel()
		return nil, fmt.Errorf("attaching session to agent: %w", err)
	}

	sess := &Session{
		ID:         id,
		Owner:      owner,
		Customer:   req.Customer,
		Agent:      a,
		Required:   slices.Clone(req.Required),
		MediaTypes: slices.Clone(req.MediaTypes),
		StartedAt:  time.Now().UTC(),
		ctx:        sessCtx,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.byAgent[a.SignInAddress()] = sess
	s.mu.Unlock()
	// A poll between Allocate and here published the agent without its
	// participant.
	a.MarkChanged()

	s.logger.Info("session started",
		"session_id", id,
		"customer", req.Customer,
		"agent", a.SignInAddress(),
		"skills", skills,
	)

	s.saveEvent(&store.AllocationEvent{
		SessionID:    id,
		AgentAddress: a.SignInAddress(),
		Customer:     req.Customer,
		Action:       store.ActionAllocated,
		Status:       agent.AllocatedByMatchMaker.String(),
		Skills:       skills,
	})
	return sess, nil
}

// End releases the session's agent. A second End for the same session
// returns ErrSessionNotFound.
func (s *Service) End(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		if s.byAgent[sess.Agent.SignInAddress()] == sess {
			delete(s.byAgent, sess.Agent.SignInAddress())
		}
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.Agent.Deallocate(sess.Owner)

	s.logger.Info("session ended",
		"session_id", id,
		"agent", sess.Agent.SignInAddress(),
		"duration", time.Since(sess.StartedAt).Round(time.Millisecond),
	)

	s.saveEvent(&store.AllocationEvent{
		SessionID:    id,
		AgentAddress: sess.Agent.SignInAddress(),
		Customer:     sess.Customer,
		Action:       store.ActionReleased,
		Status:       agent.NotAllocated.String(),
	})
	return nil
}

// Commit marks the agent as being committed to the session.
func (s *Service) Commit(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, agent.CommittingTheAgent)
}

// Escalate marks the agent as escalating the session.
func (s *Service) Escalate(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, agent.EscalatingTheAgent)
}

// AssignToOwner marks the agent as being handed to its owner.
func (s *Service) AssignToOwner(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, agent.AssigningTheAgentToItsOwner)
}

// SetStatus moves the session's agent to status and records the change.
func (s *Service) SetStatus(ctx context.Context, id string, status agent.AllocationStatus) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := sess.Agent.SetAllocationStatus(sess.Owner, status); err != nil {
		return fmt.Errorf("setting status %s: %w", status, err)
	}

	s.logger.Debug("session status changed", "session_id", id, "status", status)

	s.saveEvent(&store.AllocationEvent{
		SessionID:    id,
		AgentAddress: sess.Agent.SignInAddress(),
		Customer:     sess.Customer,
		Action:       store.ActionStatusChanged,
		Status:       status.String(),
	})
	return nil
}

// Get returns a live session.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns live sessions, oldest first.
func (s *Service) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Participant implements dashboard.ParticipantSource.
func (s *Service) Participant(agentAddress string) (dashboard.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byAgent[agent.NormalizeURI(agentAddress)]
	if !ok {
		return dashboard.Participant{}, false
	}
	return dashboard.Participant{
		SessionID:  sess.ID,
		Customer:   sess.Customer,
		MediaTypes: slices.Clone(sess.MediaTypes),
	}, true
}

// saveEvent records history with its own timeout so a cancelled request
// still leaves a trace.
func (s *Service) saveEvent(e *store.AllocationEvent) {
	if s.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.SaveAllocationEvent(saveCtx, e); err != nil {
		s.logger.Error("failed to save allocation event",
			"error", err,
			"session_id", e.SessionID,
			"action", e.Action)
	}
}

func skillStrings(skills []skill.AgentSkill) []string {
	if len(skills) == 0 {
		return nil
	}
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = s.String()
	}
	return out
}

var _ dashboard.ParticipantSource = (*Service)(nil)
