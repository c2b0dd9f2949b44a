// Package agent manages the directory of call-center agents and their
// allocation to customer sessions.
//
// # Overview
//
// The agent package holds the agents known to the contact center, groups
// them under supervisors, and implements the allocation protocol that lets
// a routing component claim an agent exclusively for one session and
// release it afterwards.
//
// # Agent
//
// Agent is the allocation unit. Identity (sign-in address, public name) and
// skills are fixed at construction. Allocation state is guarded by a
// per-agent mutex:
//
//	owner := agent.NewOwner()
//	if err := a.Allocate(owner); errors.Is(err, agent.ErrAlreadyAllocated) {
//	    // lost the race, try another agent
//	}
//	defer a.Deallocate(owner)
//
// Deallocate never fails. Releasing an unallocated agent, or one held by a
// different owner, is logged at warn level and ignored.
//
// The allocation status cycles through:
//
//	NotAllocated → AllocatedByMatchMaker → {CommittingTheAgent | EscalatingTheAgent}
//	    → AssigningTheAgentToItsOwner → NotAllocated
//
// Agent enforces only the allocated/unallocated boundary and ownership.
//
// # Change Polling
//
// Every transition sets a dirty flag. GetWhetherPropertiesChanged reads and
// clears it atomically so a polling publisher never loses a change.
// GetWhetherAllocated returns the last transition time and allocation flag
// as one snapshot.
//
// # Manager
//
// The Manager is the directory:
//
//	mgr := agent.NewManager(logger)
//
// Key operations:
//
//   - Register(agent): Add an agent
//   - Unregister(address): Remove an agent
//   - Available(skills): Online, unallocated agents with every skill
//   - AddSupervisor(s): Add a supervisor
//   - ListAgents(), ListSupervisors()
//
// Addresses are compared in NormalizeURI form.
//
// # Router
//
// Router is the match maker. Allocate scans the directory without holding
// any agent lock, picks a candidate (longest idle first by default, or
// round robin), and allocates it. When another router wins the race the
// agent is excluded and the scan repeats.
//
// # Thread Safety
//
// Agent, Supervisor, Manager and Router are safe for concurrent use. Agent
// locks are never held while acquiring a Manager or Supervisor lock.
package agent
