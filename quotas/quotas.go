// Package quotas implements the per-client rate-limit policy variants:
// token bucket, concurrency gate, no-limit, and shared (forwarding) limits.
// Multiple inheritance of client types (base class plus per-policy
// subclass) collapses into a single Limiter interface implemented by each
// variant.
package quotas

import (
	"context"
)

// Type identifies a rate-limit policy variant on the wire (rateLimit.type).
type Type string

const (
	TypeNoLimit         Type = "noLimit"
	TypeTokenBucket     Type = "requestLimit"
	TypeConcurrencyGate Type = "concurrencyLimit"
	TypeShared          Type = "sharedLimit"
)

// Spec is the wire/config shape of a client's rateLimit field .
type Spec struct {
	Type Type `json:"type"`

	// requestLimit (token bucket)
	IntervalMS  int64   `json:"interval,omitempty"`
	TokensToAdd float64 `json:"tokensToAdd,omitempty"`
	MaxTokens   float64 `json:"maxTokens,omitempty"`

	// concurrencyLimit
	MaxConcurrency int `json:"maxConcurrency,omitempty"`

	// sharedLimit
	ClientName string `json:"clientName,omitempty"`
}

// Snapshot is the current-state view of a Limiter, used for the
// clientTokensUpdated/rateLimitUpdated advisory broadcasts and for
// getClientStats .
type Snapshot struct {
	Type           Type    `json:"type"`
	Tokens         float64 `json:"tokens,omitempty"`
	MaxTokens      float64 `json:"maxTokens,omitempty"`
	InProgressCost int     `json:"inProgressCost,omitempty"`
	MaxConcurrency int     `json:"maxConcurrency,omitempty"`
	TargetClient   string  `json:"targetClientName,omitempty"`
}

// Limiter is the admission contract every policy variant implements:
// `admit(cost)` and `onRequestDone(cost)`, renamed to Go
// convention.
type Limiter interface {
	// Admit blocks until cost can be admitted or ctx is done. Freeze/thaw
	//  is client-level state, not policy state: the admission
	// loop checks it before calling Admit and aborts the iteration without
	// calling in, so Admit itself only ever waits on the policy's own
	// capacity.
	Admit(ctx context.Context, cost int) error
	// Done reports that a previously admitted cost finished, releasing any
	// concurrency slot it held. No-op for policies that don't track
	// in-flight cost.
	Done(cost int)
	// Snapshot returns the current state for advisory broadcast/inspection.
	Snapshot() Snapshot
	// ExternalRateLimit reacts to an upstream rate-limit signal (e.g. a 429):
	// token buckets zero their tokens; other policies ignore it.
	ExternalRateLimit()
	Type() Type
}

// Resolver looks up another client's Limiter by name on the local
// instance, used by the Shared policy to delegate admission to it.
type Resolver func(clientName string) (Limiter, bool)
