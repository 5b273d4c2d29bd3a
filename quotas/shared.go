package quotas

import (
	"context"

	"github.com/vivo-us/request-handler/internal/rerrors"
)

// Shared forwards all admission to a named target client's Limiter (spec
// §3's sharedLimit variant), as resolved on the local instance. The client
// using Shared takes part in ownership like any other client: its own
// controller runs the admission loop and calls Admit/Done on that locally
// resolved target Limiter. Admission is not routed to the target client's
// controller.
type Shared struct {
	targetClientName string
	resolve          Resolver
}

var _ Limiter = (*Shared)(nil)

func NewShared(targetClientName string, resolve Resolver) *Shared {
	return &Shared{targetClientName: targetClientName, resolve: resolve}
}

func (s *Shared) target() (Limiter, error) {
	l, ok := s.resolve(s.targetClientName)
	if !ok {
		return nil, rerrors.UnknownClient(s.targetClientName)
	}
	return l, nil
}

func (s *Shared) Admit(ctx context.Context, cost int) error {
	l, err := s.target()
	if err != nil {
		return err
	}
	return l.Admit(ctx, cost)
}

func (s *Shared) Done(cost int) {
	if l, err := s.target(); err == nil {
		l.Done(cost)
	}
}

func (s *Shared) Snapshot() Snapshot {
	snap := Snapshot{Type: TypeShared, TargetClient: s.targetClientName}
	if l, err := s.target(); err == nil {
		inner := l.Snapshot()
		snap.Tokens = inner.Tokens
		snap.MaxTokens = inner.MaxTokens
		snap.InProgressCost = inner.InProgressCost
		snap.MaxConcurrency = inner.MaxConcurrency
	}
	return snap
}

func (s *Shared) ExternalRateLimit() {
	if l, err := s.target(); err == nil {
		l.ExternalRateLimit()
	}
}

func (s *Shared) Type() Type { return TypeShared }

// TargetClientName returns the name of the client this policy delegates to.
func (s *Shared) TargetClientName() string { return s.targetClientName }
