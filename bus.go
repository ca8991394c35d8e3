package main

import "sync"

type eventType int

const (
	eventShardRefresh eventType = iota
	eventStatusUpdate
	eventChatMessage
	eventModListUpdate
	eventTaskStart
	eventTaskEnd
	eventExitRequested
)

type event struct {
	kind eventType
	data any
}

type subscription struct {
	id int
	fn func(event)
}

// eventBus is a synchronous publish/subscribe hub. Publish snapshots the
// subscriber list under the lock and invokes callbacks outside it; a
// panicking callback is logged and never blocks delivery to the rest.
type eventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[eventType][]subscription
}

func newEventBus() *eventBus {
	return &eventBus{subs: map[eventType][]subscription{}}
}

func (b *eventBus) subscribe(kind eventType, fn func(event)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[kind] = append(b.subs[kind], subscription{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *eventBus) unsubscribe(kind eventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[kind]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *eventBus) publish(ev event) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[ev.kind]...)
	b.mu.Unlock()

	for _, sub := range subs {
		invokeSubscriber(sub, ev)
	}
}

func invokeSubscriber(sub subscription, ev event) {
	defer func() {
		if r := recover(); r != nil {
			logf("event subscriber %d panicked: %v", sub.id, r)
		}
	}()
	sub.fn(ev)
}
