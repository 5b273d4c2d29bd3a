package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced TimeSource for deterministic tests of
// token-bucket refill, heartbeat expiry, and freeze/thaw timing without
// real sleeps.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	at       time.Time
	interval time.Duration // zero for one-shot timers
	fire     func(time.Time)
	stopped  bool
}

// NewFake creates a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, firing any timers/tickers whose
// deadline has passed, in deadline order. Tickers reschedule themselves.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *fakeWaiter
		for _, w := range f.waiters {
			if w.stopped || w.at.After(target) {
				continue
			}
			if due == nil || w.at.Before(due.at) {
				due = w
			}
		}
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = due.at
		fireAt := due.at
		if due.interval > 0 {
			due.at = due.at.Add(due.interval)
		} else {
			due.stopped = true
		}
		cb := due.fire
		f.mu.Unlock()
		cb(fireAt)
	}
}

func (f *Fake) addWaiter(w *fakeWaiter) {
	f.mu.Lock()
	f.waiters = append(f.waiters, w)
	sort.SliceStable(f.waiters, func(i, j int) bool { return f.waiters[i].at.Before(f.waiters[j].at) })
	f.mu.Unlock()
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	ch := make(chan time.Time, 1)
	w := &fakeWaiter{at: f.Now().Add(d), fire: func(t time.Time) {
		select {
		case ch <- t:
		default:
		}
	}}
	f.addWaiter(w)
	return &fakeTimer{f: f, w: w, ch: ch}
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	ch := make(chan time.Time, 1)
	w := &fakeWaiter{at: f.Now().Add(d), interval: d, fire: func(t time.Time) {
		select {
		case ch <- t:
		default:
		}
	}}
	f.addWaiter(w)
	return &fakeTicker{f: f, w: w, ch: ch}
}

func (f *Fake) AfterFunc(d time.Duration, cb func()) Timer {
	w := &fakeWaiter{at: f.Now().Add(d), fire: func(time.Time) { cb() }}
	f.addWaiter(w)
	return &fakeTimer{f: f, w: w}
}

type fakeTimer struct {
	f  *Fake
	w  *fakeWaiter
	ch chan time.Time
}

func (t *fakeTimer) Chan() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	wasLive := !t.w.stopped
	t.w.stopped = true
	return wasLive
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.f.mu.Lock()
	wasLive := !t.w.stopped
	t.w.stopped = false
	t.w.at = t.f.now.Add(d)
	t.f.mu.Unlock()
	return wasLive
}

type fakeTicker struct {
	f  *Fake
	w  *fakeWaiter
	ch chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	t.w.stopped = true
}

func (t *fakeTicker) Reset(d time.Duration) {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	t.w.stopped = false
	t.w.interval = d
	t.w.at = t.f.now.Add(d)
}
