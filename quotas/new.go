package quotas

import (
	"fmt"
	"time"

	"github.com/vivo-us/request-handler/internal/clock"
)

// New builds the Limiter named by spec.Type. resolve is only consulted for
// TypeShared and may be nil otherwise.
func New(spec Spec, ts clock.TimeSource, resolve Resolver) (Limiter, error) {
	switch spec.Type {
	case TypeNoLimit, "":
		return NewNoLimit(), nil
	case TypeTokenBucket:
		if spec.IntervalMS <= 0 || spec.TokensToAdd <= 0 || spec.MaxTokens <= 0 {
			return nil, fmt.Errorf("quotas: requestLimit requires positive interval, tokensToAdd, and maxTokens")
		}
		return NewTokenBucket(ts, time.Duration(spec.IntervalMS)*time.Millisecond, spec.TokensToAdd, spec.MaxTokens), nil
	case TypeConcurrencyGate:
		if spec.MaxConcurrency <= 0 {
			return nil, fmt.Errorf("quotas: concurrencyLimit requires a positive maxConcurrency")
		}
		return NewConcurrencyGate(spec.MaxConcurrency), nil
	case TypeShared:
		if spec.ClientName == "" {
			return nil, fmt.Errorf("quotas: sharedLimit requires clientName")
		}
		if resolve == nil {
			return nil, fmt.Errorf("quotas: sharedLimit requires a resolver")
		}
		return NewShared(spec.ClientName, resolve), nil
	default:
		return nil, fmt.Errorf("quotas: unknown rate limit type %q", spec.Type)
	}
}

// Stoppable is implemented by policies that own a background goroutine
// (currently only TokenBucket) and must release it on client destruction.
type Stoppable interface {
	Stop()
}
