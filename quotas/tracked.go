package quotas

import (
	"context"

	"go.uber.org/atomic"
)

// Tracked wraps a Limiter with admitted/rejected counters. It counts
// against plain atomic counters rather than a metrics scope, since this
// module has no metrics-emission surface to build against. Counts are
// read through Counts; client.Stats does not include them.
type Tracked struct {
	wrapped  Limiter
	admitted atomic.Int64
	rejected atomic.Int64
}

var _ Limiter = (*Tracked)(nil)

func NewTracked(wrapped Limiter) *Tracked {
	return &Tracked{wrapped: wrapped}
}

func (t *Tracked) Admit(ctx context.Context, cost int) error {
	err := t.wrapped.Admit(ctx, cost)
	if err != nil {
		t.rejected.Inc()
	} else {
		t.admitted.Inc()
	}
	return err
}

func (t *Tracked) Done(cost int)              { t.wrapped.Done(cost) }
func (t *Tracked) Snapshot() Snapshot         { return t.wrapped.Snapshot() }
func (t *Tracked) ExternalRateLimit()         { t.wrapped.ExternalRateLimit() }
func (t *Tracked) Type() Type                 { return t.wrapped.Type() }
func (t *Tracked) Unwrap() Limiter            { return t.wrapped }

// Counts returns the running admitted/rejected totals.
func (t *Tracked) Counts() (admitted, rejected int64) {
	return t.admitted.Load(), t.rejected.Load()
}
