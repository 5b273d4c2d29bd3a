package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivo-us/request-handler/record"
)

func TestRequestMap_NextReturnsHighestPriorityFirst(t *testing.T) {
	m := newRequestMap()
	now := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "low", Priority: 1, Timestamp: 1, Status: record.StatusInQueue}, now)
	m.Put(&record.Record{RequestID: "high", Priority: 10, Timestamp: 2, Status: record.StatusInQueue}, now)

	next, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "high", next.RequestID)
}

func TestRequestMap_NextReturnsFalseWhenHeadInProgress(t *testing.T) {
	m := newRequestMap()
	now := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "a", Priority: 5, Status: record.StatusInProgress}, now)

	_, ok := m.Next()
	assert.False(t, ok, "the only request is already in progress, nothing admissible")
}

func TestRequestMap_NextSkipsNothingButReportsQueuedHead(t *testing.T) {
	m := newRequestMap()
	now := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "busy", Priority: 100, Status: record.StatusInProgress}, now)
	m.Put(&record.Record{RequestID: "waiting", Priority: 1, Status: record.StatusInQueue}, now)

	next, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "waiting", next.RequestID, "in-progress requests never block the queued head")
}

func TestRequestMap_RemoveDropsFromFutureSorts(t *testing.T) {
	m := newRequestMap()
	now := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "a", Priority: 1, Status: record.StatusInQueue}, now)
	m.Put(&record.Record{RequestID: "b", Priority: 1, Status: record.StatusInQueue}, now)
	m.Remove("a")

	next, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "b", next.RequestID)
}

func TestRequestMap_ExpireStaleDropsPastTTL(t *testing.T) {
	m := newRequestMap()
	start := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "a", Status: record.StatusInQueue}, start)

	dropped := m.ExpireStale(start.Add(2*time.Second), 3*time.Second)
	assert.Empty(t, dropped, "not yet past TTL")

	dropped = m.ExpireStale(start.Add(4*time.Second), 3*time.Second)
	assert.Equal(t, []string{"a"}, dropped)

	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestRequestMap_TouchRefreshesLiveness(t *testing.T) {
	m := newRequestMap()
	start := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "a", Status: record.StatusInQueue}, start)
	m.Touch("a", start.Add(2*time.Second))

	dropped := m.ExpireStale(start.Add(4*time.Second), 3*time.Second)
	assert.Empty(t, dropped, "heartbeat at t=2s keeps it alive through t=4s with a 3s ttl")
}

func TestRequestMap_SnapshotSeparatesQueueFromInProgress(t *testing.T) {
	m := newRequestMap()
	now := time.Unix(0, 0)
	m.Put(&record.Record{RequestID: "a", Status: record.StatusInQueue, Cost: 2}, now)
	m.Put(&record.Record{RequestID: "b", Status: record.StatusInProgress, Cost: 3}, now)

	inQueue, inProgress := m.Snapshot()
	require.Len(t, inQueue, 1)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "a", inQueue[0].RequestID)
	assert.Equal(t, "b", inProgress[0].RequestID)
}
