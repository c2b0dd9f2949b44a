// ABOUTME: Agent is a call-center representative that can be allocated to one session at a time.
// ABOUTME: All allocation state lives behind a per-agent mutex; deallocation anomalies are logged.

package agent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/2389/coven-contactcenter/internal/skill"
)

// Allocation errors.
var (
	ErrAlreadyAllocated = errors.New("agent already allocated")
	ErrNullRequestor    = errors.New("requestor is required")
	ErrNotAllocated     = errors.New("agent is not allocated")
	ErrNotOwner         = errors.New("requestor does not own the agent")
	ErrInvalidStatus    = errors.New("invalid allocation status")
)

// Agent is a single allocation unit. Identity and skills are fixed at
// construction; everything below mu is guarded by it.
type Agent struct {
	signInAddress string
	publicName    string
	skills        []skill.AgentSkill
	logger        *slog.Logger
	now           func() time.Time

	mu              sync.Mutex
	allocated       bool
	status          AllocationStatus
	owner           Owner
	activeIdleSince time.Time
	dirty           bool
	pending         context.CancelFunc
	online          bool
	supervisor      *Supervisor
}

// Params holds the values needed to create an Agent.
type Params struct {
	SignInAddress string
	PublicName    string
	Skills        []skill.AgentSkill
	Logger        *slog.Logger

	// Now overrides the clock used for activeIdleSince. Defaults to time.Now.
	Now func() time.Time
}

// New creates an unallocated, offline Agent. The sign-in address is stored
// in normalized form.
func New(p Params) *Agent {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	address := NormalizeURI(p.SignInAddress)
	return &Agent{
		signInAddress:   address,
		publicName:      p.PublicName,
		skills:          slices.Clone(p.Skills),
		logger:          logger.With("agent", address),
		now:             now,
		activeIdleSince: now(),
	}
}

// SignInAddress returns the normalized sign-in address, the agent's key.
func (a *Agent) SignInAddress() string {
	return a.signInAddress
}

// PublicName returns the display name.
func (a *Agent) PublicName() string {
	return a.publicName
}

// Skills returns a copy of the agent's skills.
func (a *Agent) Skills() []skill.AgentSkill {
	return slices.Clone(a.skills)
}

// Equal reports whether both agents have the same sign-in address.
func (a *Agent) Equal(other *Agent) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.signInAddress == other.signInAddress
}

// Allocate claims the agent for owner. Returns ErrNullRequestor for the zero
// Owner and ErrAlreadyAllocated if another owner holds the agent.
func (a *Agent) Allocate(owner Owner) error {
	if owner.IsZero() {
		return ErrNullRequestor
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.allocated {
		return ErrAlreadyAllocated
	}

	a.owner = owner
	a.allocated = true
	a.status = AllocatedByMatchMaker
	a.touchLocked()

	a.logger.Debug("agent allocated", "owner", owner)
	return nil
}

// Deallocate releases the agent if owner holds it. Releasing an agent that
// is not allocated, or that is held by someone else, is logged and ignored:
// deallocation runs from cleanup paths where the agent may already have
// been released and reassigned.
func (a *Agent) Deallocate(owner Owner) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allocated {
		a.logger.Warn("deallocate on unallocated agent", "owner", owner)
		return
	}
	if a.owner != owner {
		a.logger.Warn("deallocate by non-owner ignored",
			"owner", a.owner,
			"requestor", owner,
		)
		return
	}

	if a.pending != nil {
		a.pending()
		a.pending = nil
	}
	a.owner = Owner{}
	a.allocated = false
	a.status = NotAllocated
	a.touchLocked()

	a.logger.Debug("agent deallocated", "owner", owner)
}

// SetAllocationStatus moves an allocated agent to one of the intermediate
// stages. Only the current owner may do so. Moving back to NotAllocated is
// refused; use Deallocate.
func (a *Agent) SetAllocationStatus(owner Owner, status AllocationStatus) error {
	if status == NotAllocated || status.String() == "unknown" {
		return ErrInvalidStatus
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allocated {
		return ErrNotAllocated
	}
	if a.owner != owner {
		return ErrNotOwner
	}
	if a.status == status {
		return nil
	}

	a.status = status
	a.touchLocked()
	return nil
}

// AttachPending registers a cancel func for the owner's in-flight operation
// on this agent. Deallocate calls and clears it.
func (a *Agent) AttachPending(owner Owner, cancel context.CancelFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allocated {
		return ErrNotAllocated
	}
	if a.owner != owner {
		return ErrNotOwner
	}
	a.pending = cancel
	return nil
}

// touchLocked records a state transition. Must be called with mu held.
// activeIdleSince strictly increases with every transition.
func (a *Agent) touchLocked() {
	t := a.now()
	if !t.After(a.activeIdleSince) {
		t = a.activeIdleSince.Add(time.Nanosecond)
	}
	a.activeIdleSince = t
	a.dirty = true
}

// MarkChanged flags the agent for the next change poll without a state
// transition. Callers use it after attaching data that dashboards read
// alongside the agent.
func (a *Agent) MarkChanged() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty = true
}

// GetWhetherPropertiesChanged reports whether the agent changed since the
// last call, and clears the flag.
func (a *Agent) GetWhetherPropertiesChanged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := a.dirty
	a.dirty = false
	return changed
}

// GetWhetherAllocated returns the time of the last transition together with
// the allocation flag, read as one snapshot.
func (a *Agent) GetWhetherAllocated() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeIdleSince, a.allocated
}

// IsAllocated reports whether the agent is currently allocated.
func (a *Agent) IsAllocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Owner returns the current owner, or the zero Owner when unallocated.
func (a *Agent) Owner() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// AllocationStatus returns the current allocation stage.
func (a *Agent) AllocationStatus() AllocationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IsOnline reports whether the agent is signed in.
func (a *Agent) IsOnline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

// SetOnline records a sign-in or sign-out. Going offline does not release
// an allocation; the owning session still has to deallocate.
func (a *Agent) SetOnline(online bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.online == online {
		return
	}
	a.online = online
	a.dirty = true
}

// Supervisor returns the supervisor the agent is grouped under, if any.
func (a *Agent) Supervisor() *Supervisor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.supervisor
}

func (a *Agent) setSupervisor(s *Supervisor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.supervisor = s
}

// clearSupervisor drops the back-reference only if it still points at s.
func (a *Agent) clearSupervisor(s *Supervisor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.supervisor == s {
		a.supervisor = nil
	}
}

// HasSkill reports whether the agent has a skill equal to s.
func (a *Agent) HasSkill(s skill.AgentSkill) bool {
	return slices.ContainsFunc(a.skills, s.Equal)
}

// HasSkills reports whether the agent has every skill in required.
func (a *Agent) HasSkills(required []skill.AgentSkill) bool {
	for _, s := range required {
		if !a.HasSkill(s) {
			return false
		}
	}
	return true
}

// Snapshot is a consistent, read-only copy of an agent's state.
type Snapshot struct {
	SignInAddress   string
	PublicName      string
	Skills          []string
	Online          bool
	Allocated       bool
	Status          AllocationStatus
	Owner           Owner
	ActiveIdleSince time.Time
	Supervisor      string
}

// Snapshot returns the agent's state as read under a single lock hold.
func (a *Agent) Snapshot() Snapshot {
	skills := make([]string, len(a.skills))
	for i, s := range a.skills {
		skills[i] = s.String()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		SignInAddress:   a.signInAddress,
		PublicName:      a.publicName,
		Skills:          skills,
		Online:          a.online,
		Allocated:       a.allocated,
		Status:          a.status,
		Owner:           a.owner,
		ActiveIdleSince: a.activeIdleSince,
	}
	if a.supervisor != nil {
		snap.Supervisor = a.supervisor.SignInAddress()
	}
	return snap
}
