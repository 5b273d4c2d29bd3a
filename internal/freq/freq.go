// Package freq provides a callback that runs at most once per interval,
// coalescing bursts of calls into a single delayed run. The coordinator
// uses this to coalesce ownership-recompute triggers (several independent
// membership events can all fire within the same tick).
package freq

import (
	"sync"
	"time"

	"github.com/vivo-us/request-handler/internal/clock"
)

type LimitedFreq struct {
	mut sync.Mutex

	ts       clock.TimeSource
	interval time.Duration
	cb       func()
	stopped  bool
	last     time.Time
	pending  clock.Timer
}

// NewLimitedFrequencyCallback calls cb at most once per interval; calls more
// frequent than that are deduplicated and delayed until interval after the
// previous successful call.
//
// Callbacks always run asynchronously (on their own goroutine), so a call
// may still land after Stop() returns; synchronize separately if that
// matters to the caller.
func NewLimitedFrequencyCallback(ts clock.TimeSource, interval time.Duration, cb func()) *LimitedFreq {
	return &LimitedFreq{
		interval: interval,
		cb:       cb,
		ts:       ts,
	}
}

// Handle calls or enqueues a deferred call of cb.
func (l *LimitedFreq) Handle() {
	l.handleInternal(false)
}

func (l *LimitedFreq) handleDeferred() {
	l.handleInternal(true)
}

func (l *LimitedFreq) handleInternal(wasPending bool) {
	l.mut.Lock()
	defer l.mut.Unlock()
	if l.stopped {
		return
	}

	now := l.ts.Now()
	elapsed := now.Sub(l.last)
	if elapsed >= l.interval {
		go l.cb()
		l.last = now
		if l.pending != nil {
			l.pending.Stop()
			l.pending = nil
		}
		return
	}

	if !wasPending && l.pending == nil {
		l.pending = l.ts.AfterFunc(l.interval-elapsed, l.handleDeferred)
	}
}

func (l *LimitedFreq) Stop() {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.stopped = true
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
}

func (l *LimitedFreq) Stopped() bool {
	l.mut.Lock()
	defer l.mut.Unlock()
	return l.stopped
}
