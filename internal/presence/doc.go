// Package presence applies agent sign-in and sign-out events to the agent
// directory.
//
// Presence sources redeliver events, so each Tracker keeps a TTL and size
// bounded seen-cache of event IDs and drops repeats. Applied states are
// written through to the store so a restarted process can Restore them.
//
// Going offline never releases an allocation. The session that owns the
// agent still has to deallocate it.
package presence
