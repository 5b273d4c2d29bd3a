package client

import (
	"errors"
	"math"
	"time"
)

// retryDecision is the outcome of evaluating retry eligibility
// rules against a failed attempt.
type retryDecision struct {
	Retry         bool
	IsRateLimited bool
	WaitTime      time.Duration
}

// decideRetry implements first-match-wins eligibility chain.
// statusCode is 0 for a transport failure that never reached the server.
func (c *Client) decideRetry(retries int, statusCode int, transportErr error) retryDecision {
	opts := c.spec.RetryOptions

	if retries >= opts.MaxRetries {
		return retryDecision{Retry: false}
	}

	switch {
	case statusCode == 429 && boolValue(opts.Retry429s):
		return retryDecision{Retry: true, IsRateLimited: true, WaitTime: c.backoff(retries + 1)}
	case statusCode >= 500 && boolValue(opts.Retry5xxs):
		return retryDecision{Retry: true, WaitTime: c.backoff(retries + 1)}
	case containsCode(opts.RetryStatusCodes, statusCode):
		return retryDecision{Retry: true, WaitTime: c.backoff(retries + 1)}
	case isRetryableTransportError(transportErr):
		return retryDecision{Retry: true, WaitTime: c.backoff(retries + 1)}
	case opts.RetryHandler != nil && transportErr != nil && opts.RetryHandler(transportErr):
		return retryDecision{Retry: true, WaitTime: c.backoff(retries + 1)}
	default:
		return retryDecision{Retry: false}
	}
}

// backoff computes waitTime = retries^p * base, where p is 2
// for "exponential" (default) or 1 for "linear", and base is the token
// bucket's refill interval for requestLimit clients or
// retryBackoffBaseTime otherwise, so the minimum backoff is always at
// least one refill cycle for token-bucket clients.
func (c *Client) backoff(retries int) time.Duration {
	p := 2.0
	if c.spec.RetryOptions.RetryBackoffMethod == "linear" {
		p = 1.0
	}
	base := c.spec.RetryOptions.RetryBackoffBaseTime
	if tb, ok := c.baseLimiter().(interface{ Interval() time.Duration }); ok {
		base = tb.Interval()
	}
	factor := math.Pow(float64(retries), p)
	return time.Duration(factor) * base
}

// boolValue treats an unset tri-state retry flag as false; decideRetry is
// only ever called against a spec that has already gone through
// RetryOptions.withDefaults, where Retry429s/Retry5xxs are never nil, so
// this only matters for tests constructing a Client directly.
func boolValue(b *bool) bool { return b != nil && *b }

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func isRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.Code {
		case "ECONNRESET", "ETIMEDOUT", "ECONNABORTED":
			return true
		}
	}
	return false
}
