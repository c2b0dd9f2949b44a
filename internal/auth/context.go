// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
	"slices"
)

// Operator roles.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleRouter     = "router" // front-ends that start and end sessions
	RolePresence   = "presence"
)

// AuthContext holds the authenticated identity extracted from a request.
type AuthContext struct {
	OperatorID string
	Roles      []string
}

// HasRole reports whether the operator has role. Admins have every role.
func (a *AuthContext) HasRole(role string) bool {
	return slices.Contains(a.Roles, RoleAdmin) || slices.Contains(a.Roles, role)
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
