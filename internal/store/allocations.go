// ABOUTME: Allocation history store methods
// ABOUTME: Append-only record of which session held which agent and when

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// newEventID returns a ULID for t, so IDs sort in creation order.
func newEventID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// SaveAllocationEvent appends an event to the allocation history.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) SaveAllocationEvent(ctx context.Context, e *AllocationEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = newEventID(e.Timestamp)
	}

	var skillsJSON *string
	if len(e.Skills) > 0 {
		data, err := json.Marshal(e.Skills)
		if err != nil {
			return fmt.Errorf("marshaling skills: %w", err)
		}
		str := string(data)
		skillsJSON = &str
	}

	query := `
		INSERT INTO allocation_events (event_id, session_id, agent_address, customer, action, status, skills_json, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.SessionID,
		e.AgentAddress,
		e.Customer,
		string(e.Action),
		e.Status,
		skillsJSON,
		e.Timestamp.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting allocation event: %w", err)
	}

	s.logger.Debug("saved allocation event",
		"id", e.ID,
		"session_id", e.SessionID,
		"agent", e.AgentAddress,
		"action", e.Action,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// ListAllocationEvents returns events matching the filter, newest first.
func (s *SQLiteStore) ListAllocationEvents(ctx context.Context, f AllocationFilter) ([]*AllocationEvent, error) {
	query := `
		SELECT event_id, session_id, agent_address, customer, action, status, skills_json, ts
		FROM allocation_events
		WHERE 1=1
	`
	var args []any

	if f.AgentAddress != "" {
		query += " AND agent_address = ?"
		args = append(args, f.AgentAddress)
	}
	if f.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, f.SessionID)
	}

	query += " ORDER BY ts DESC, rowid DESC LIMIT ?"
	args = append(args, normalizeLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying allocation events: %w", err)
	}
	defer rows.Close()

	var events []*AllocationEvent
	for rows.Next() {
		var (
			e          AllocationEvent
			action     string
			skillsJSON *string
			ts         string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.AgentAddress, &e.Customer, &action, &e.Status, &skillsJSON, &ts); err != nil {
			return nil, fmt.Errorf("scanning allocation event: %w", err)
		}
		e.Action = AllocationAction(action)

		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing ts: %w", err)
		}

		if skillsJSON != nil {
			if err := json.Unmarshal([]byte(*skillsJSON), &e.Skills); err != nil {
				return nil, fmt.Errorf("unmarshaling skills: %w", err)
			}
		}

		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating allocation events: %w", err)
	}

	return events, nil
}

// PruneAllocationEvents deletes events recorded before the cutoff and
// returns how many were removed.
func (s *SQLiteStore) PruneAllocationEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM allocation_events WHERE ts < ?`,
		before.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning allocation events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned events: %w", err)
	}
	return n, nil
}
