// ABOUTME: Gateway orchestrator that wires the directory, router, sessions and HTTP API
// ABOUTME: Manages the store, dashboard poller and HTTP server lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/auth"
	"github.com/2389/coven-contactcenter/internal/config"
	"github.com/2389/coven-contactcenter/internal/dashboard"
	"github.com/2389/coven-contactcenter/internal/presence"
	"github.com/2389/coven-contactcenter/internal/session"
	"github.com/2389/coven-contactcenter/internal/skill"
	"github.com/2389/coven-contactcenter/internal/store"
)

// Gateway owns every server component of coven-contactcenter.
type Gateway struct {
	config      *config.Config
	directory   *agent.Manager
	skills      []*skill.Skill
	router      *agent.Router
	store       store.Store
	sessions    *session.Service
	presence    *presence.Tracker
	broadcaster *dashboard.Broadcaster
	poller      *dashboard.Poller
	pruner      *historyPruner // nil when history is kept forever
	limiter     *rateLimiter   // nil when write rate limiting is off
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore opens the SQLite store at the configured path with its writes
// behind a circuit breaker.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return store.NewBreakerStore(s, store.BreakerOptions{
		MaxFailures: cfg.Database.BreakerFailures,
		Timeout:     cfg.Database.BreakerTimeout,
	}, logger), nil
}

// New creates a Gateway from configuration. Persisted presence is restored
// over the configured online flags.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	directory, skills, err := buildDirectory(cfg.Directory, logger)
	if err != nil {
		return nil, fmt.Errorf("building directory: %w", err)
	}

	s, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	strategy, err := agent.ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	router := agent.NewRouter(directory, agent.RouterOptions{
		Strategy:    strategy,
		MaxAttempts: cfg.Routing.MaxAttempts,
	}, logger)

	sessions := session.New(router, s, logger)
	tracker := presence.NewTracker(directory, s, presence.Options{
		DedupeTTL:  cfg.Presence.DedupeTTL,
		DedupeSize: cfg.Presence.DedupeSize,
	}, logger)

	if _, err := tracker.Restore(context.Background()); err != nil {
		tracker.Close()
		_ = s.Close()
		return nil, fmt.Errorf("restoring presence: %w", err)
	}
	// Restored state is the baseline, not a change.
	for _, a := range directory.ListAgents() {
		a.GetWhetherPropertiesChanged()
	}

	pruner, err := newHistoryPruner(s, cfg.Database.Retention, cfg.Database.PruneSchedule, logger)
	if err != nil {
		tracker.Close()
		_ = s.Close()
		return nil, err
	}

	broadcaster := dashboard.NewBroadcaster(logger)
	gw := &Gateway{
		config:      cfg,
		directory:   directory,
		skills:      skills,
		router:      router,
		store:       s,
		sessions:    sessions,
		presence:    tracker,
		broadcaster: broadcaster,
		poller:      dashboard.NewPoller(directory, sessions, broadcaster, cfg.Dashboard.PollInterval, logger),
		pruner:      pruner,
		limiter:     newRateLimiter(cfg.Server.RateLimitPerMin, cfg.Server.RateBurst),
		logger:      logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	if err := gw.registerHTTPAPIRoutes(mux); err != nil {
		_ = gw.closeComponents()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	total, online, _ := directory.Counts()
	gw.logger.Info("gateway initialized",
		"agents", total,
		"online", online,
		"supervisors", len(directory.ListSupervisors()),
		"skills", len(skills),
		"strategy", strategy,
	)
	return gw, nil
}

// registerHTTPAPIRoutes registers API routes with or without auth middleware.
func (g *Gateway) registerHTTPAPIRoutes(mux *http.ServeMux) error {
	type route struct {
		pattern string
		role    string // empty: any authenticated caller
		handler http.HandlerFunc
	}
	routes := []route{
		{"GET /api/agents", "", g.handleListAgents},
		{"GET /api/agents/{address}", "", g.handleGetAgent},
		{"GET /api/supervisors", "", g.handleListSupervisors},
		{"GET /api/skills", "", g.handleListSkills},
		{"GET /api/history", "", g.handleHistory},
		{"GET /api/events", "", g.handleEvents},
		{"GET /api/sessions", "", g.handleListSessions},
		{"POST /api/sessions", auth.RoleRouter, g.handleStartSession},
		{"DELETE /api/sessions/{id}", auth.RoleRouter, g.handleEndSession},
		{"POST /api/sessions/{id}/status", auth.RoleRouter, g.handleSessionStatus},
		{"POST /api/presence", auth.RolePresence, g.handlePresence},
	}

	// Writes are the role-gated routes; only those are rate limited.
	limit := func(rt route, h http.Handler) http.Handler {
		if g.limiter == nil || rt.role == "" {
			return h
		}
		return g.limiter.middleware(h)
	}

	if g.config.Auth.JWTSecret == "" {
		for _, rt := range routes {
			mux.Handle(rt.pattern, limit(rt, rt.handler))
		}
		g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
		return nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating HTTP JWT verifier: %w", err)
	}
	authMiddleware := auth.HTTPAuthMiddleware(verifier)
	for _, rt := range routes {
		var h http.Handler = rt.handler
		if rt.role != "" {
			h = auth.RequireRoleHTTP(rt.role)(h)
		}
		mux.Handle(rt.pattern, limit(rt, authMiddleware(h)))
	}
	g.logger.Info("HTTP auth middleware enabled")
	return nil
}

// Handler returns the HTTP handler serving the API.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run serves HTTP and polls for dashboard changes until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go g.poller.Run(bgCtx)
	if g.limiter != nil {
		go g.limiter.run(bgCtx)
	}
	prunerDone := make(chan struct{})
	if g.pruner != nil {
		go func() {
			defer close(prunerDone)
			g.pruner.run(bgCtx)
		}()
	} else {
		close(prunerDone)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}
	stopBackground()
	<-prunerDone

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents closes everything except the HTTP server. Subscriber
// channels are closed first so open event streams end.
func (g *Gateway) closeComponents() error {
	g.broadcaster.Close()
	g.presence.Close()
	return g.store.Close()
}

// Shutdown stops the HTTP server and releases resources. Sessions still
// open are left allocated; nothing outlives the process.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "open_sessions", len(g.sessions.List()))

	// Close broadcaster first so SSE handlers return and Shutdown does not
	// wait on them. closeComponents closes it again, which is a no-op.
	g.broadcaster.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.closeComponents())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one agent is signed in.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	total, online, allocated := g.directory.Counts()
	if online == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "no agents online (%d configured)", total)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents, %d online, %d allocated)", total, online, allocated)
}
