// ABOUTME: In-memory fan-out of agent Records to dashboard subscribers
// ABOUTME: Subscribers watch every agent or only one supervisor's team

package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-contactcenter/internal/agent"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// AllAgents is the topic that receives every published Record.
const AllAgents = ""

// Broadcaster provides in-memory pub/sub for Records. A subscriber's topic
// is a supervisor sign-in address, or AllAgents.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Record // topic -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Record),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for Records on topic. The supervisor address is
// normalized. The subscription is removed and its channel closed when ctx
// is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, topic string) (<-chan Record, string) {
	topic = normalizeTopic(topic)
	subID := uuid.New().String()
	ch := make(chan Record, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan Record)
	}
	b.subscribers[topic][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "topic", topic, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(topic, subID)
	}()

	return ch, subID
}

// Publish sends r to AllAgents subscribers and to subscribers of the
// agent's supervisor. Sends never block; a full subscriber misses the
// record.
func (b *Broadcaster) Publish(r Record) {
	// Held across the sends so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.sendLocked(AllAgents, r)
	if r.Supervisor != "" {
		b.sendLocked(r.Supervisor, r)
	}
}

func (b *Broadcaster) sendLocked(topic string, r Record) {
	for id, ch := range b.subscribers[topic] {
		select {
		case ch <- r:
		default:
			b.logger.Debug("dropped record for slow subscriber",
				"topic", topic,
				"sub_id", id,
				"agent", r.SignInAddress)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(topic, subID string) {
	topic = normalizeTopic(topic)

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, topic)
	}

	b.logger.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Close closes all subscriber channels. It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, topic)
	}

	b.logger.Debug("broadcaster closed")
}

func normalizeTopic(topic string) string {
	if topic == AllAgents {
		return AllAgents
	}
	return agent.NormalizeURI(topic)
}
