// ABOUTME: Manages the directory of agents and supervisors known to the contact center.
// ABOUTME: Central lookup for routing, presence and dashboard components.

package agent

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/2389/coven-contactcenter/internal/skill"
)

// ErrAgentAlreadyRegistered indicates an agent with the same address is already in the directory.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// ErrSupervisorAlreadyRegistered indicates a supervisor with the same address already exists.
var ErrSupervisorAlreadyRegistered = errors.New("supervisor already registered")

// ErrInvalidAddress indicates an empty or malformed sign-in address.
var ErrInvalidAddress = errors.New("invalid sign-in address")

// Manager is the agent directory. It holds agents and supervisors by
// normalized sign-in address.
type Manager struct {
	agents      map[string]*Agent
	supervisors map[string]*Supervisor
	mu          sync.RWMutex
	logger      *slog.Logger
}

// NewManager creates a new, empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		agents:      make(map[string]*Agent),
		supervisors: make(map[string]*Supervisor),
		logger:      logger.With("component", "directory"),
	}
}

// Register adds an agent to the directory.
// Returns ErrAgentAlreadyRegistered if an agent with the same address exists.
func (m *Manager) Register(agent *Agent) error {
	if agent.SignInAddress() == "" {
		return ErrInvalidAddress
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[agent.SignInAddress()]; exists {
		return ErrAgentAlreadyRegistered
	}

	m.agents[agent.SignInAddress()] = agent
	m.logger.Info("=== AGENT REGISTERED ===",
		"agent", agent.SignInAddress(),
		"name", agent.PublicName(),
		"skills", len(agent.skills),
		"total_agents", len(m.agents),
	)
	return nil
}

// Unregister removes an agent from the directory and from its supervisor.
func (m *Manager) Unregister(signInAddress string) {
	key := NormalizeURI(signInAddress)

	m.mu.Lock()
	agent, exists := m.agents[key]
	if exists {
		delete(m.agents, key)
	}
	total := len(m.agents)
	m.mu.Unlock()

	if !exists {
		return
	}
	if sup := agent.Supervisor(); sup != nil {
		sup.RemoveAgent(key)
	}
	m.logger.Info("=== AGENT REMOVED ===",
		"agent", key,
		"name", agent.PublicName(),
		"total_agents", total,
	)
}

// GetAgent retrieves an agent by sign-in address in any accepted form.
func (m *Manager) GetAgent(signInAddress string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[NormalizeURI(signInAddress)]
	return agent, ok
}

// IsOnline checks whether the agent with the given address is signed in.
func (m *Manager) IsOnline(signInAddress string) bool {
	agent, ok := m.GetAgent(signInAddress)
	return ok && agent.IsOnline()
}

// ListAgents returns every agent ordered by sign-in address.
func (m *Manager) ListAgents() []*Agent {
	m.mu.RLock()
	agents := make([]*Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		agents = append(agents, agent)
	}
	m.mu.RUnlock()

	slices.SortFunc(agents, func(a, b *Agent) int {
		return strings.Compare(a.SignInAddress(), b.SignInAddress())
	})
	return agents
}

// Available returns agents that are online, unallocated and have every
// required skill. The result is an optimistic snapshot: an agent may be
// allocated by another router between this call and Allocate.
func (m *Manager) Available(required []skill.AgentSkill) []*Agent {
	var out []*Agent
	for _, agent := range m.ListAgents() {
		if !agent.HasSkills(required) {
			continue
		}
		snap := agent.Snapshot()
		if snap.Online && !snap.Allocated {
			out = append(out, agent)
		}
	}
	return out
}

// AddSupervisor registers a supervisor.
func (m *Manager) AddSupervisor(s *Supervisor) error {
	if s.SignInAddress() == "" {
		return ErrInvalidAddress
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.supervisors[s.SignInAddress()]; exists {
		return ErrSupervisorAlreadyRegistered
	}
	m.supervisors[s.SignInAddress()] = s
	m.logger.Info("supervisor registered",
		"supervisor", s.SignInAddress(),
		"name", s.PublicName(),
	)
	return nil
}

// GetSupervisor retrieves a supervisor by sign-in address.
func (m *Manager) GetSupervisor(signInAddress string) (*Supervisor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.supervisors[NormalizeURI(signInAddress)]
	return s, ok
}

// ListSupervisors returns every supervisor ordered by sign-in address.
func (m *Manager) ListSupervisors() []*Supervisor {
	m.mu.RLock()
	out := make([]*Supervisor, 0, len(m.supervisors))
	for _, s := range m.supervisors {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Supervisor) int {
		return strings.Compare(a.SignInAddress(), b.SignInAddress())
	})
	return out
}

// Counts returns the number of registered, online and allocated agents.
func (m *Manager) Counts() (total, online, allocated int) {
	for _, agent := range m.ListAgents() {
		snap := agent.Snapshot()
		total++
		if snap.Online {
			online++
		}
		if snap.Allocated {
			allocated++
		}
	}
	return total, online, allocated
}
