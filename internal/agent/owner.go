// ABOUTME: Owner is the opaque handle a session uses to claim and release an agent.
// ABOUTME: Only the handle that allocated an agent may deallocate it.

package agent

import (
	"fmt"

	"github.com/google/uuid"
)

// Owner identifies the session holding an agent allocation. The zero value
// is the null requestor and can never own an agent.
type Owner struct {
	id uuid.UUID
}

// NewOwner returns a fresh, unique Owner.
func NewOwner() Owner {
	return Owner{id: uuid.New()}
}

// ParseOwner parses the string form produced by Owner.String.
func ParseOwner(s string) (Owner, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Owner{}, fmt.Errorf("parsing owner %q: %w", s, err)
	}
	return Owner{id: id}, nil
}

// IsZero reports whether o is the null requestor.
func (o Owner) IsZero() bool {
	return o.id == uuid.Nil
}

// String returns the canonical UUID form, or "" for the zero Owner.
func (o Owner) String() string {
	if o.IsZero() {
		return ""
	}
	return o.id.String()
}
