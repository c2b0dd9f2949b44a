// ABOUTME: Thread-safe TTL cache of presence event IDs.
// ABOUTME: Lets the tracker drop redelivered events in O(1) with bounded memory.

package presence

import (
	"container/list"
	"sync"
	"time"
)

type seenEntry struct {
	timestamp time.Time
	element   *list.Element
}

// seenCache remembers event IDs for ttl, holding at most maxSize of them.
// Insertion order is kept in a list so eviction of the oldest is O(1).
type seenCache struct {
	mu      sync.Mutex
	seen    map[string]*seenEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

func newSeenCache(ttl time.Duration, maxSize int, now func() time.Time) *seenCache {
	if now == nil {
		now = time.Now
	}
	c := &seenCache{
		seen:    make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// checkAndMark reports whether key was seen within the TTL. If it was not,
// the key is recorded before returning.
func (c *seenCache) checkAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.seen[key]; ok {
		if now.Sub(entry.timestamp) < c.ttl {
			return true
		}
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[key] = &seenEntry{
		timestamp: now,
		element:   c.order.PushBack(key),
	}
	return false
}

// evictOldest must be called with mu held.
func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *seenCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *seenCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire drops every entry older than the TTL.
func (c *seenCache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

func (c *seenCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
