// ABOUTME: Poller reads each agent's change flag and publishes Records for changed agents.
// ABOUTME: Run drives Poll on a fixed interval until the context ends.

package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/coven-contactcenter/internal/agent"
)

// Lister is the part of the agent directory the poller walks.
type Lister interface {
	ListAgents() []*agent.Agent
}

// Poller publishes a Record for every agent whose properties changed since
// the previous poll.
type Poller struct {
	dir          Lister
	participants ParticipantSource
	broadcaster  *Broadcaster
	interval     time.Duration
	logger       *slog.Logger
}

// NewPoller creates a Poller. participants may be nil.
func NewPoller(dir Lister, participants ParticipantSource, b *Broadcaster, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		dir:          dir,
		participants: participants,
		broadcaster:  b,
		interval:     interval,
		logger:       logger.With("component", "dashboard"),
	}
}

// Poll consumes every agent's change flag once and publishes a Record for
// each agent that had changed. Returns the number published.
func (p *Poller) Poll() int {
	published := 0
	for _, a := range p.dir.ListAgents() {
		if !a.GetWhetherPropertiesChanged() {
			continue
		}
		p.broadcaster.Publish(Convert(a, lookup(p.participants, a.SignInAddress())))
		published++
	}
	if published > 0 {
		p.logger.Debug("published agent changes", "count", published)
	}
	return published
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("dashboard poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("dashboard poller stopped")
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
