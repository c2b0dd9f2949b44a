// Package dashboard projects agents into display records and pushes them to
// subscribers when they change.
//
// Agents do not notify anyone when they change. They raise a dirty flag
// that the Poller reads and clears on an interval. Each changed agent is
// converted to a Record and published on the Broadcaster, which fans it
// out to every subscriber watching all agents and to those watching the
// agent's supervisor.
//
//	b := dashboard.NewBroadcaster(logger)
//	p := dashboard.NewPoller(manager, sessions, b, 2*time.Second, logger)
//	go p.Run(ctx)
//	ch, _ := b.Subscribe(ctx, "")
package dashboard
