package agent

import "fmt"

// AllocationStatus is the stage an agent has reached in the allocation cycle:
//
//	NotAllocated → AllocatedByMatchMaker → {CommittingTheAgent | EscalatingTheAgent}
//	    → AssigningTheAgentToItsOwner → NotAllocated
//
// Agent only enforces the allocated/unallocated boundary. Moves between the
// intermediate stages are made by the routing layer.
type AllocationStatus int

const (
	NotAllocated AllocationStatus = iota
	AllocatedByMatchMaker
	CommittingTheAgent
	EscalatingTheAgent
	AssigningTheAgentToItsOwner
)

var statusNames = map[AllocationStatus]string{
	NotAllocated:                "not_allocated",
	AllocatedByMatchMaker:       "allocated_by_match_maker",
	CommittingTheAgent:          "committing",
	EscalatingTheAgent:          "escalating",
	AssigningTheAgentToItsOwner: "assigning_to_owner",
}

func (s AllocationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseAllocationStatus converts the String form back into a status.
func ParseAllocationStatus(s string) (AllocationStatus, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return NotAllocated, fmt.Errorf("unknown allocation status %q", s)
}
