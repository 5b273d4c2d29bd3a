package client

import (
	"sync"

	"github.com/vivo-us/request-handler/record"
)

// eventBus is the "event emitter keyed by string", rebuilt as a
// map from request id to a one-shot completion handle. An originating
// instance registers a request id before publishing requestAdded, then
// blocks on the returned channel for the controller's requestReady.
// Resolving is idempotent: a request id can only be resolved once, matching
// "completion is idempotent."
type eventBus struct {
	mu      sync.Mutex
	waiters map[string]chan *record.Record
}

func newEventBus() *eventBus {
	return &eventBus{waiters: make(map[string]chan *record.Record)}
}

// Register opens a one-shot slot for requestID. The returned channel
// receives exactly one *record.Record and is then closed.
func (b *eventBus) Register(requestID string) <-chan *record.Record {
	ch := make(chan *record.Record, 1)
	b.mu.Lock()
	b.waiters[requestID] = ch
	b.mu.Unlock()
	return ch
}

// Resolve delivers rec to the waiter for requestID, if still registered.
// A second resolve for the same id is a no-op.
func (b *eventBus) Resolve(requestID string, rec *record.Record) {
	b.mu.Lock()
	ch, ok := b.waiters[requestID]
	if ok {
		delete(b.waiters, requestID)
	}
	b.mu.Unlock()
	if ok {
		ch <- rec
		close(ch)
	}
}

// Cancel removes a waiter without resolving it, used when handleRequest
// gives up (e.g. context canceled) before a requestReady ever arrives.
func (b *eventBus) Cancel(requestID string) {
	b.mu.Lock()
	delete(b.waiters, requestID)
	b.mu.Unlock()
}
