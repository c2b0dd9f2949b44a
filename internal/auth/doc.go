// Package auth authenticates API callers with HS256 JWTs.
//
// Tokens carry the operator ID in "sub" and a "roles" claim:
//
//   - admin: everything
//   - supervisor: read agents, supervisors, history and the event stream
//   - router: start, step and end sessions
//   - presence: post presence events
//
// Any valid token may read. HTTPAuthMiddleware verifies the token and puts
// an AuthContext on the request; RequireRoleHTTP gates individual routes.
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate("switchboard", []string{auth.RoleRouter}, 24*time.Hour)
package auth
