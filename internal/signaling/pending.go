package signaling

import (
	"encoding/json"
	"sync"
)

// pendingTable parks in-flight requests by correlation id until the read
// loop resolves them or the client shuts down.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan json.RawMessage
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[string]chan json.RawMessage)}
}

// add registers a waiter for id. The channel has capacity 1 so the read
// loop never blocks on a slow requester.
func (t *pendingTable) add(id string) chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)
	t.mu.Lock()
	t.waiters[id] = ch
	t.mu.Unlock()
	return ch
}

// resolve delivers payload to the waiter for id. Responses with no waiter
// (timed out, cancelled, duplicate) are dropped.
func (t *pendingTable) resolve(id string, payload json.RawMessage) bool {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- payload
	return true
}

// drop removes the waiter for id without delivering anything.
func (t *pendingTable) drop(id string) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}

// failAll closes every waiter channel; parked Requests observe the closed
// channel and report the client as gone.
func (t *pendingTable) failAll() {
	t.mu.Lock()
	for id, ch := range t.waiters {
		close(ch)
		delete(t.waiters, id)
	}
	t.mu.Unlock()
}
