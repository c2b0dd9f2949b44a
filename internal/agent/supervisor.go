// ABOUTME: Supervisor groups agents under a responsible party.
// ABOUTME: Membership is guarded by the supervisor's own lock; agents are held by reference.

package agent

import (
	"slices"
	"sync"
)

// Supervisor groups a set of agents. It does not own their lifetime.
type Supervisor struct {
	signInAddress       string
	publicName          string
	instantMessageColor string

	mu     sync.RWMutex
	agents []*Agent
}

// NewSupervisor creates a Supervisor with no agents.
func NewSupervisor(signInAddress, publicName, instantMessageColor string) *Supervisor {
	return &Supervisor{
		signInAddress:       NormalizeURI(signInAddress),
		publicName:          publicName,
		instantMessageColor: instantMessageColor,
	}
}

// SignInAddress returns the normalized sign-in address.
func (s *Supervisor) SignInAddress() string {
	return s.signInAddress
}

// PublicName returns the display name.
func (s *Supervisor) PublicName() string {
	return s.publicName
}

// InstantMessageColor returns the display color used for the supervisor's messages.
func (s *Supervisor) InstantMessageColor() string {
	return s.instantMessageColor
}

// Equal reports whether both supervisors have the same sign-in address.
func (s *Supervisor) Equal(other *Supervisor) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.signInAddress == other.signInAddress
}

// AddAgent appends a to the group and points its supervisor at s. An agent
// that belongs to another supervisor is moved out of that group first.
// Adding an agent that is already a member is a no-op.
func (s *Supervisor) AddAgent(a *Agent) {
	if prev := a.Supervisor(); prev != nil && prev != s {
		prev.RemoveAgent(a.signInAddress)
	}

	s.mu.Lock()
	if slices.ContainsFunc(s.agents, a.Equal) {
		s.mu.Unlock()
		return
	}
	s.agents = append(s.agents, a)
	s.mu.Unlock()

	a.setSupervisor(s)
}

// RemoveAgent removes the agent with the given sign-in address. Reports
// whether it was a member.
func (s *Supervisor) RemoveAgent(signInAddress string) bool {
	key := NormalizeURI(signInAddress)

	s.mu.Lock()
	idx := slices.IndexFunc(s.agents, func(a *Agent) bool {
		return a.signInAddress == key
	})
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.agents[idx]
	s.agents = slices.Delete(s.agents, idx, idx+1)
	s.mu.Unlock()

	removed.clearSupervisor(s)
	return true
}

// Agents returns a copy of the member list in insertion order.
func (s *Supervisor) Agents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.agents)
}
