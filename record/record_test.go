package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLess_PriorityOrdering(t *testing.T) {
	high := &Record{RequestID: "b", Priority: 5, Timestamp: 10}
	low := &Record{RequestID: "a", Priority: 1, Timestamp: 5}
	assert.True(t, Less(high, low))
	assert.False(t, Less(low, high))
}

func TestLess_RetriesBreakTiesBeforeTimestamp(t *testing.T) {
	retried := &Record{RequestID: "a", Priority: 1, Retries: 2, Timestamp: 100}
	fresh := &Record{RequestID: "b", Priority: 1, Retries: 0, Timestamp: 1}
	assert.True(t, Less(retried, fresh), "already-retrying requests drain before new ones")
}

func TestLess_TimestampBreaksTiesBeforeRequestID(t *testing.T) {
	earlier := &Record{RequestID: "z", Priority: 1, Timestamp: 1}
	later := &Record{RequestID: "a", Priority: 1, Timestamp: 2}
	assert.True(t, Less(earlier, later))
}

func TestLess_RequestIDIsDeterministicTiebreak(t *testing.T) {
	a := &Record{RequestID: "a", Priority: 1, Timestamp: 1}
	b := &Record{RequestID: "b", Priority: 1, Timestamp: 1}
	assert.True(t, Less(a, b))
	assert.False(t, Less(b, a))
}

func TestLess_InProgressAlwaysSortsLast(t *testing.T) {
	inProgress := &Record{RequestID: "a", Status: StatusInProgress, Priority: 100, Timestamp: 1}
	queued := &Record{RequestID: "z", Status: StatusInQueue, Priority: 1, Timestamp: 1000}
	assert.True(t, Less(queued, inProgress), "queued always precedes in-progress regardless of priority")
	assert.False(t, Less(inProgress, queued))
}

func TestClone_IsIndependentCopy(t *testing.T) {
	r := &Record{RequestID: "a", Priority: 1}
	c := r.Clone()
	c.Priority = 99
	assert.Equal(t, 1, r.Priority)
	assert.Equal(t, 99, c.Priority)
}
