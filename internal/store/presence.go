// ABOUTME: Agent presence store methods
// ABOUTME: Keeps the last known sign-in state so a restart can restore it

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetPresence upserts the presence row for an agent. A row older than the
// stored one is ignored.
func (s *SQLiteStore) SetPresence(ctx context.Context, p *Presence) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO agent_presence (agent_address, online, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(agent_address) DO UPDATE SET
			online = excluded.online,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= agent_presence.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.AgentAddress,
		boolToInt(p.Online),
		p.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("upserting presence: %w", err)
	}
	return nil
}

// GetPresence returns the stored presence for an agent.
// Returns ErrNotFound if none has been recorded.
func (s *SQLiteStore) GetPresence(ctx context.Context, agentAddress string) (*Presence, error) {
	query := `SELECT agent_address, online, updated_at FROM agent_presence WHERE agent_address = ?`

	p, err := scanPresence(s.db.QueryRowContext(ctx, query, agentAddress))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying presence: %w", err)
	}
	return p, nil
}

// ListPresence returns every stored presence row ordered by address.
func (s *SQLiteStore) ListPresence(ctx context.Context) ([]*Presence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_address, online, updated_at FROM agent_presence ORDER BY agent_address`)
	if err != nil {
		return nil, fmt.Errorf("querying presence: %w", err)
	}
	defer rows.Close()

	var out []*Presence
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning presence: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presence: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPresence(row rowScanner) (*Presence, error) {
	var (
		p         Presence
		online    int
		updatedAt string
	)
	if err := row.Scan(&p.AgentAddress, &online, &updatedAt); err != nil {
		return nil, err
	}
	p.Online = online != 0

	var err error
	p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
