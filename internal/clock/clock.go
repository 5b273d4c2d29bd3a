// Package clock abstracts time so admission loops, heartbeat tickers, and
// freeze timers can be driven by a fake clock in tests instead of real
// sleeps: a TimeSource that hands out Timers and Tickers instead of
// exposing time.After/time.NewTicker directly.
package clock

import "time"

// TimeSource is the seam between real wall-clock time and a fake clock used
// in tests.
type TimeSource interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer mirrors time.Timer without exposing the raw channel type, so fake
// implementations can deliver ticks deterministically.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker mirrors time.Ticker.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

type realTimeSource struct{}

// NewRealTimeSource returns a TimeSource backed by the standard library.
func NewRealTimeSource() TimeSource { return realTimeSource{} }

func (realTimeSource) Now() time.Time { return time.Now() }

func (realTimeSource) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

func (realTimeSource) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (realTimeSource) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) Chan() <-chan time.Time    { return r.t.C }
func (r *realTimer) Stop() bool                { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) Chan() <-chan time.Time   { return r.t.C }
func (r *realTicker) Stop()                    { r.t.Stop() }
func (r *realTicker) Reset(d time.Duration)    { r.t.Reset(d) }
