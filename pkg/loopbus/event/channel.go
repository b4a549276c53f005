package event

import (
	"sync"
	"sync/atomic"
)

// HandlerID identifies one attachment of a handler. IDs are unique within a
// Registry.
type HandlerID uint64

// Subscriber is one attachment of a Handler to an event key.
type Subscriber struct {
	ID      HandlerID
	Key     string
	Handler Handler
}

// Channel holds the subscribers of one event key.
type Channel struct {
	key string
	ids *atomic.Uint64

	mu   sync.Mutex
	subs []*Subscriber
}

func newChannel(key string, ids *atomic.Uint64) *Channel {
	return &Channel{key: key, ids: ids}
}

// Key returns the event key of the channel.
func (c *Channel) Key() string {
	return c.key
}

// Attach appends h to the subscriber list. The same handler may be attached
// more than once and then receives one delivery per attachment.
func (c *Channel) Attach(h Handler) *Subscriber {
	sub := &Subscriber{
		ID:      HandlerID(c.ids.Add(1)),
		Key:     c.key,
		Handler: h,
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	return sub
}

// Detach removes the subscriber with the given id. Deliveries already handed
// to a loop are not affected.
func (c *Channel) Detach(id HandlerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subs {
		if sub.ID == id {
			next := make([]*Subscriber, 0, len(c.subs)-1)
			next = append(next, c.subs[:i]...)
			next = append(next, c.subs[i+1:]...)
			c.subs = next
			return true
		}
	}
	return false
}

// Snapshot returns the current subscribers in attachment order. The returned
// slice is owned by the caller.
func (c *Channel) Snapshot() []*Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs) == 0 {
		return nil
	}
	out := make([]*Subscriber, len(c.subs))
	copy(out, c.subs)
	return out
}

// Len returns the number of subscribers.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
