// Package bus carries change notifications between the state store and its
// views: a synchronous in-process bus for the writer's own views, and a
// Notifier that reaches views held by other service instances.
package bus

import "sync"

// Bus delivers named, payload-less signals synchronously to every current
// subscriber. Subscribers are views that recompute derived state (counts,
// totals) when the underlying collection changes.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func()
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]func())}
}

// Subscribe registers fn for a topic and returns a cancel function.
func (b *Bus) Subscribe(topic string, fn func()) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func())
	}
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish invokes every subscriber of the topic before returning. Handlers
// run outside the bus lock so they may subscribe or publish themselves.
func (b *Bus) Publish(topic string) {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
