// ABOUTME: Match maker that selects an available agent with the required skills and allocates it.
// ABOUTME: Retries past agents lost to concurrent routers; longest-idle or round-robin selection.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/2389/coven-contactcenter/internal/skill"
)

// ErrNoAgentsAvailable indicates no agents are available to handle a request.
var ErrNoAgentsAvailable = errors.New("no agents available")

// Strategy selects among equally eligible agents.
type Strategy string

const (
	// StrategyLongestIdle picks the agent whose last transition is oldest.
	StrategyLongestIdle Strategy = "longest_idle"
	// StrategyRoundRobin rotates through candidates ordered by address.
	StrategyRoundRobin Strategy = "round_robin"
)

// ParseStrategy validates a configured strategy name. Empty means longest idle.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyLongestIdle:
		return StrategyLongestIdle, nil
	case StrategyRoundRobin:
		return StrategyRoundRobin, nil
	default:
		return "", fmt.Errorf("unknown routing strategy %q", s)
	}
}

// Directory supplies allocation candidates.
type Directory interface {
	Available(required []skill.AgentSkill) []*Agent
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Strategy Strategy
	// MaxAttempts bounds allocation attempts per request. Zero means keep
	// trying until no candidates remain.
	MaxAttempts int
}

// Router allocates agents on behalf of sessions.
type Router struct {
	directory   Directory
	strategy    Strategy
	maxAttempts int
	current     uint64
	logger      *slog.Logger
}

// NewRouter creates a new Router instance.
func NewRouter(directory Directory, opts RouterOptions, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyLongestIdle
	}
	return &Router{
		directory:   directory,
		strategy:    strategy,
		maxAttempts: opts.MaxAttempts,
		logger:      logger.With("component", "router"),
	}
}

// SelectAgent picks one agent from the candidates according to the strategy.
// Returns ErrNoAgentsAvailable if no agents are provided.
func (r *Router) SelectAgent(agents []*Agent) (*Agent, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgentsAvailable
	}

	switch r.strategy {
	case StrategyRoundRobin:
		ordered := slices.Clone(agents)
		slices.SortFunc(ordered, func(a, b *Agent) int {
			return strings.Compare(a.SignInAddress(), b.SignInAddress())
		})
		idx := atomic.AddUint64(&r.current, 1) - 1
		return ordered[idx%uint64(len(ordered))], nil

	default:
		type candidate struct {
			agent *Agent
			since int64
		}
		cands := make([]candidate, len(agents))
		for i, a := range agents {
			since, _ := a.GetWhetherAllocated()
			cands[i] = candidate{agent: a, since: since.UnixNano()}
		}
		best := slices.MinFunc(cands, func(x, y candidate) int {
			if x.since != y.since {
				if x.since < y.since {
					return -1
				}
				return 1
			}
			return strings.Compare(x.agent.SignInAddress(), y.agent.SignInAddress())
		})
		return best.agent, nil
	}
}

// Allocate finds an online, unallocated agent with every required skill and
// allocates it to owner. Agents lost to a concurrent router are excluded
// and the search repeats. Returns ErrNoAgentsAvailable when no candidate
// remains or the attempt budget is spent, and ctx.Err() if ctx ends first.
func (r *Router) Allocate(ctx context.Context, owner Owner, required []skill.AgentSkill) (*Agent, error) {
	if owner.IsZero() {
		return nil, ErrNullRequestor
	}

	excluded := make(map[string]struct{})
	for attempt := 1; r.maxAttempts == 0 || attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates := slices.DeleteFunc(r.directory.Available(required), func(a *Agent) bool {
			_, skip := excluded[a.SignInAddress()]
			return skip
		})

		selected, err := r.SelectAgent(candidates)
		if err != nil {
			r.logger.Debug("no agent matches request",
				"owner", owner,
				"skills", describeSkills(required),
				"attempt", attempt,
			)
			return nil, err
		}

		err = selected.Allocate(owner)
		if errors.Is(err, ErrAlreadyAllocated) {
			r.logger.Debug("lost allocation race, retrying",
				"agent", selected.SignInAddress(),
				"owner", owner,
				"attempt", attempt,
			)
			excluded[selected.SignInAddress()] = struct{}{}
			continue
		}
		if err != nil {
			return nil, err
		}

		r.logger.Info("agent allocated",
			"agent", selected.SignInAddress(),
			"owner", owner,
			"skills", describeSkills(required),
			"attempt", attempt,
		)
		return selected, nil
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrNoAgentsAvailable, r.maxAttempts)
}

func describeSkills(required []skill.AgentSkill) []string {
	out := make([]string, len(required))
	for i, s := range required {
		out[i] = s.String()
	}
	return out
}
