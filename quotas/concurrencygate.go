package quotas

import (
	"context"
	"sync"
)

// ConcurrencyGate implements concurrencyLimit policy: admission
// is allowed while the sum of in-progress cost plus the new cost does not
// exceed maxConcurrency. There is no ticker; re-evaluation happens whenever
// Done is called (a requestDone was observed).
type ConcurrencyGate struct {
	mu             sync.Mutex
	maxConcurrency int
	inProgress     int
	changed        chan struct{}
}

var _ Limiter = (*ConcurrencyGate)(nil)

func NewConcurrencyGate(maxConcurrency int) *ConcurrencyGate {
	return &ConcurrencyGate{
		maxConcurrency: maxConcurrency,
		changed:        make(chan struct{}),
	}
}

func (g *ConcurrencyGate) wakeLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *ConcurrencyGate) Admit(ctx context.Context, cost int) error {
	for {
		g.mu.Lock()
		if g.inProgress+cost <= g.maxConcurrency {
			g.inProgress += cost
			g.mu.Unlock()
			return nil
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *ConcurrencyGate) Done(cost int) {
	g.mu.Lock()
	g.inProgress -= cost
	if g.inProgress < 0 {
		g.inProgress = 0
	}
	g.wakeLocked()
	g.mu.Unlock()
}

func (g *ConcurrencyGate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{Type: TypeConcurrencyGate, InProgressCost: g.inProgress, MaxConcurrency: g.maxConcurrency}
}

// ExternalRateLimit is a no-op: concurrency gates have nothing analogous to
// a token balance to clear.
func (g *ConcurrencyGate) ExternalRateLimit() {}

func (g *ConcurrencyGate) Type() Type { return TypeConcurrencyGate }
