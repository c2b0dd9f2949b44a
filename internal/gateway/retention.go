// ABOUTME: Scheduled pruning of old allocation history
// ABOUTME: Runs on a cron schedule and deletes events older than the retention window

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/2389/coven-contactcenter/internal/config"
	"github.com/2389/coven-contactcenter/internal/store"
)

// pruneTimeout bounds a single prune run.
const pruneTimeout = time.Minute

// historyPruner deletes allocation events older than retention on a schedule.
type historyPruner struct {
	store     store.Store
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
	logger    *slog.Logger
}

// newHistoryPruner returns nil when retention is zero.
func newHistoryPruner(s store.Store, retention time.Duration, schedule string, logger *slog.Logger) (*historyPruner, error) {
	if retention <= 0 {
		return nil, nil
	}
	if schedule == "" {
		schedule = config.DefaultPruneSchedule
	}

	p := &historyPruner{
		store:     s,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
		logger:    logger.With("component", "retention"),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.prune(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduling history pruning %q: %w", schedule, err)
	}
	return p, nil
}

// prune runs one pass and returns how many events were removed.
func (p *historyPruner) prune(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneAllocationEvents(ctx, cutoff)
	if err != nil {
		p.logger.Error("pruning allocation history failed", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		p.logger.Info("pruned allocation history", "removed", n, "cutoff", cutoff)
	}
	return n
}

// run prunes once, then on schedule until ctx ends.
func (p *historyPruner) run(ctx context.Context) {
	p.prune(ctx)
	p.cron.Start()
	<-ctx.Done()
	// Wait for an in-flight prune before the store is closed.
	<-p.cron.Stop().Done()
}
