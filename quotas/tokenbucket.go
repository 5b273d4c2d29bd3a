package quotas

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vivo-us/request-handler/internal/clock"
)

// TokenBucket implements requestLimit policy: a background
// ticker adds tokensToAdd every interval, capped at maxTokens. Admit blocks
// until tokens >= cost, then decrements. ExternalRateLimit (a 429 signal)
// zeroes tokens immediately, and no tokens are added while the bucket is
// paused (Pause/Resume, called on client freeze/thaw), matching "tokens may not be added while the
// client is frozen."
//
// This is hand-rolled rather than built on golang.org/x/time/rate because
// rate.Limiter computes its refill lazily from elapsed wall-clock time on
// each call: pausing it for a freeze window would let it silently "catch up"
// all the tokens missed during the freeze the moment it is asked about
// again, which this token bucket explicitly forbids. A real ticker, gated by a
// frozen flag checked on each tick, is the only way to honor that.
type TokenBucket struct {
	mu          sync.Mutex
	tokens      float64
	maxTokens   float64
	tokensToAdd float64
	interval    time.Duration
	frozen      bool
	changed     chan struct{}

	ticker  clock.Ticker
	stopCh  chan struct{}
	stopped bool
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket starts the refill ticker immediately; call Stop when the
// client is destroyed to release it.
func NewTokenBucket(ts clock.TimeSource, interval time.Duration, tokensToAdd, maxTokens float64) *TokenBucket {
	tb := &TokenBucket{
		tokens:      maxTokens,
		maxTokens:   maxTokens,
		tokensToAdd: tokensToAdd,
		interval:    interval,
		changed:     make(chan struct{}),
		ticker:      ts.NewTicker(interval),
		stopCh:      make(chan struct{}),
	}
	go tb.run()
	return tb
}

func (tb *TokenBucket) run() {
	for {
		select {
		case <-tb.ticker.Chan():
			tb.mu.Lock()
			if !tb.frozen {
				tb.tokens = math.Min(tb.maxTokens, tb.tokens+tb.tokensToAdd)
				tb.wakeLocked()
			}
			tb.mu.Unlock()
		case <-tb.stopCh:
			tb.ticker.Stop()
			return
		}
	}
}

func (tb *TokenBucket) wakeLocked() {
	close(tb.changed)
	tb.changed = make(chan struct{})
}

func (tb *TokenBucket) Admit(ctx context.Context, cost int) error {
	for {
		tb.mu.Lock()
		if !tb.frozen && tb.tokens >= float64(cost) {
			tb.tokens -= float64(cost)
			tb.mu.Unlock()
			return nil
		}
		ch := tb.changed
		tb.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done is a no-op: token buckets do not track in-flight cost, only the
// remaining token balance.
func (tb *TokenBucket) Done(cost int) {}

func (tb *TokenBucket) Snapshot() Snapshot {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return Snapshot{Type: TypeTokenBucket, Tokens: tb.tokens, MaxTokens: tb.maxTokens}
}

// ExternalRateLimit zeroes the token balance immediately: tokens := 0 on
// freeze for token-bucket clients, rather than merely pausing refill.
func (tb *TokenBucket) ExternalRateLimit() {
	tb.mu.Lock()
	tb.tokens = 0
	tb.mu.Unlock()
}

func (tb *TokenBucket) Type() Type { return TypeTokenBucket }

// Pause stops token replenishment (called when the owning client freezes).
func (tb *TokenBucket) Pause() {
	tb.mu.Lock()
	tb.frozen = true
	tb.tokens = 0
	tb.mu.Unlock()
}

// Resume re-enables replenishment and wakes any blocked admitters (called
// when the owning client thaws).
func (tb *TokenBucket) Resume() {
	tb.mu.Lock()
	tb.frozen = false
	tb.wakeLocked()
	tb.mu.Unlock()
}

// Interval returns the configured refill interval, used by the retry engine
//  as the minimum backoff base time for token-bucket clients.
func (tb *TokenBucket) Interval() time.Duration { return tb.interval }

// Stop releases the background ticker goroutine.
func (tb *TokenBucket) Stop() {
	tb.mu.Lock()
	if tb.stopped {
		tb.mu.Unlock()
		return
	}
	tb.stopped = true
	tb.mu.Unlock()
	close(tb.stopCh)
}
