// Package session ties customer sessions to allocated agents.
//
// A session is the owner of exactly one agent from Start until End. Start
// asks the router for an agent matching the required skills; End releases
// it. In between, Commit, Escalate and AssignToOwner move the agent through
// the intermediate allocation stages.
//
// Every step is appended to the allocation history in the store. History
// writes that fail are logged and never undo the allocation they describe.
//
// The Service also implements dashboard.ParticipantSource so dashboards can
// show which customer and media an allocated agent is serving.
package session
