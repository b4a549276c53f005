// Package event provides the subscriber bookkeeping and delivery units of
// loopbus.
//
// # Overview
//
//   - Handler: a subscriber bound to the loop it must run on
//   - Channel: the subscriber list of one event key, with its own lock
//   - Registry: key -> Channel map with a structural lock
//   - Task: one delivery of one argument list to one subscriber
//
// # Locking
//
// Two levels of locks are used and never nested across a loop submission:
//
//	Registry.mu  held only to find or create a Channel
//	Channel.mu   held only to append, remove or snapshot subscribers
//
// Publishing takes a snapshot of the subscriber list and releases the channel
// lock before any Task is submitted, so a slow subscriber never stalls
// producers or registrations on the same key.
//
// # Delivery
//
//	ch, ok := registry.Find("ping")
//	if !ok {
//	    return // nobody listens, nothing allocated
//	}
//	for _, sub := range ch.Snapshot() {
//	    _ = event.NewTask(sub, args, hooks).Dispatch()
//	}
//
// A Task moves through Created -> WakeRequested -> Delivered, or ends in
// Discarded when its loop is closed before the task runs.
//
// # Lifetime
//
// Channels are never removed from a Registry. Subscribers may be detached;
// a Task holds its own reference so a subscriber detached while a delivery is
// in flight still receives that delivery.
package event
