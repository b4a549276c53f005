package event

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry maps event keys to channels. Keys are compared byte for byte.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	// ids is shared by every channel so handler ids are registry-unique.
	ids atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
	}
}

// FindOrCreate returns the channel for key, creating it if needed.
func (r *Registry) FindOrCreate(key string) *Channel {
	r.mu.RLock()
	ch, ok := r.channels[key]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it between the two locks.
	if ch, ok := r.channels[key]; ok {
		return ch
	}
	ch = newChannel(key, &r.ids)
	r.channels[key] = ch
	return ch
}

// Find returns the channel for key without creating one.
func (r *Registry) Find(key string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[key]
	return ch, ok
}

// Has returns true if a channel exists for key.
func (r *Registry) Has(key string) bool {
	_, ok := r.Find(key)
	return ok
}

// Keys returns every key with a channel, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.channels))
	for k := range r.channels {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
