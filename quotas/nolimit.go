package quotas

import "context"

// NoLimit always admits immediately and never enqueues. The request
// pipeline (step 3) short-circuits the queue path entirely when a
// client uses this policy, so Admit here is really only reached by direct
// callers (e.g. tests) rather than the admission loop, which never runs for
// a NoLimit client.
type NoLimit struct{}

var _ Limiter = NoLimit{}

func NewNoLimit() NoLimit { return NoLimit{} }

func (NoLimit) Admit(ctx context.Context, cost int) error { return nil }
func (NoLimit) Done(cost int)                              {}
func (NoLimit) Snapshot() Snapshot                          { return Snapshot{Type: TypeNoLimit} }
func (NoLimit) ExternalRateLimit()                          {}
func (NoLimit) Type() Type                                  { return TypeNoLimit }
