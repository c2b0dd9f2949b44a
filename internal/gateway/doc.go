// Package gateway wires coven-contactcenter together and serves its HTTP API.
//
// # Components
//
// New builds, from configuration:
//
//   - the agent directory (agent.Manager) with skills and supervisors
//   - the SQLite store holding allocation history and presence, with
//     writes behind a circuit breaker
//   - the router that allocates agents by skill
//   - the session service that owns allocations
//   - the presence tracker, restored from the store
//   - the dashboard broadcaster and poller
//   - the history pruner, when database.retention is set
//   - the write rate limiter, when server.rate_limit_per_min is set
//
// Run serves HTTP and runs the background jobs until its context ends.
//
// # HTTP Endpoints
//
// Health endpoints are never authenticated:
//
//	GET    /health                      liveness
//	GET    /health/ready                503 until an agent is online
//
// API endpoints need a bearer token when auth.jwt_secret is set. Routes
// with a role are also the ones rate limited:
//
//	GET    /api/agents                  ?supervisor= ?online=true
//	GET    /api/agents/{address}
//	GET    /api/supervisors
//	GET    /api/skills
//	GET    /api/sessions
//	POST   /api/sessions                router role
//	DELETE /api/sessions/{id}           router role
//	POST   /api/sessions/{id}/status    router role
//	POST   /api/presence                presence role
//	GET    /api/history                 ?agent= ?session= ?limit=
//	GET    /api/events                  SSE, ?supervisor=
package gateway
