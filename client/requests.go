package client

import (
	"sort"
	"sync"
	"time"

	"github.com/vivo-us/request-handler/record"
)

// requestMap is the controller's priority-ordered request map from spec
// §4.4: a "dirty" flag marks it unsorted, and the controller re-sorts
// lazily before pulling the next request. Scheduling is cooperative
// single-threaded per client, so the mutex here only guards against the
// pipeline's originator-side bookkeeping calls racing the admission loop,
// never against concurrent sorts.
type requestMap struct {
	mu        sync.Mutex
	byID      map[string]*record.Record
	heartbeat map[string]time.Time
	order     []*record.Record
	dirty     bool
}

func newRequestMap() *requestMap {
	return &requestMap{
		byID:      make(map[string]*record.Record),
		heartbeat: make(map[string]time.Time),
	}
}

// Put inserts or replaces a record and marks the map dirty.
func (m *requestMap) Put(rec *record.Record, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.RequestID]; !exists {
		m.order = append(m.order, rec)
	}
	m.byID[rec.RequestID] = rec
	m.heartbeat[rec.RequestID] = now
	m.dirty = true
}

// Touch refreshes a request's liveness timestamp (requestHeartbeat).
func (m *requestMap) Touch(requestID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[requestID]; ok {
		m.heartbeat[requestID] = now
	}
}

// Remove drops a request, e.g. on requestDone or heartbeat expiry.
func (m *requestMap) Remove(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, requestID)
	delete(m.heartbeat, requestID)
	m.dirty = true
}

func (m *requestMap) Get(requestID string) (*record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[requestID]
	return rec, ok
}

// Next returns the highest-ranked admissible (status == InQueue) request,
// sorting the backing slice first if dirty (lazy re-sort).
func (m *requestMap) Next() (*record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sortLocked()
	if len(m.order) == 0 {
		return nil, false
	}
	head := m.order[0]
	if head.Status != record.StatusInQueue {
		return nil, false
	}
	return head, true
}

func (m *requestMap) sortLocked() {
	if !m.dirty {
		return
	}
	live := m.order[:0:0]
	for _, rec := range m.order {
		if _, ok := m.byID[rec.RequestID]; ok {
			live = append(live, rec)
		}
	}
	m.order = live
	sort.SliceStable(m.order, func(i, j int) bool {
		return record.Less(m.order[i], m.order[j])
	})
	m.dirty = false
}

// MarkDirty forces a re-sort on the next Next() call, used when a record's
// priority-relevant fields are mutated in place.
func (m *requestMap) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// Snapshot returns clones of every tracked request, split into queued and
// in-progress, used by getClientStats.
func (m *requestMap) Snapshot() (inQueue, inProgress []*record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byID {
		if rec.Status == record.StatusInProgress {
			inProgress = append(inProgress, rec.Clone())
		} else {
			inQueue = append(inQueue, rec.Clone())
		}
	}
	return inQueue, inProgress
}

// ExpireStale drops requests whose last heartbeat is older than ttl (spec
// §4.4: "3-second heartbeat timeout; if no requestHeartbeat arrives in that
// window, the request is discarded"). Returns the dropped request ids.
func (m *requestMap) ExpireStale(now time.Time, ttl time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped []string
	for id, last := range m.heartbeat {
		if now.Sub(last) > ttl {
			dropped = append(dropped, id)
			delete(m.byID, id)
			delete(m.heartbeat, id)
		}
	}
	if len(dropped) > 0 {
		m.dirty = true
	}
	return dropped
}
