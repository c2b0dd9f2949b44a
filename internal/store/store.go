// ABOUTME: Store interface and data types for coven-contactcenter persistence
// ABOUTME: Defines allocation history and agent presence records

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// AllocationAction is what happened to an agent within a session.
type AllocationAction string

const (
	ActionAllocated     AllocationAction = "allocated"
	ActionStatusChanged AllocationAction = "status_changed"
	ActionReleased      AllocationAction = "released"
	ActionRejected      AllocationAction = "rejected" // no agent could be allocated
)

// AllocationEvent records one step of a session's use of an agent.
type AllocationEvent struct {
	ID           string
	SessionID    string
	AgentAddress string // empty for ActionRejected
	Customer     string
	Action       AllocationAction
	Status       string   // agent allocation status after the step
	Skills       []string // Name=Value requirements of the session
	Timestamp    time.Time
}

// AllocationFilter narrows ListAllocationEvents.
type AllocationFilter struct {
	AgentAddress string
	SessionID    string
	Limit        int // default 100, max 1000
}

// Presence is the last known sign-in state of an agent.
type Presence struct {
	AgentAddress string
	Online       bool
	UpdatedAt    time.Time
}

// Store defines the interface for allocation persistence
type Store interface {
	// Allocation history
	SaveAllocationEvent(ctx context.Context, event *AllocationEvent) error
	ListAllocationEvents(ctx context.Context, filter AllocationFilter) ([]*AllocationEvent, error)
	PruneAllocationEvents(ctx context.Context, before time.Time) (int64, error)

	// Presence
	SetPresence(ctx context.Context, p *Presence) error
	GetPresence(ctx context.Context, agentAddress string) (*Presence, error)
	ListPresence(ctx context.Context) ([]*Presence, error)

	// Close releases any resources held by the store
	Close() error
}
