package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/quotas"
)

func newTestClient(retry RetryOptions) *Client {
	limiter := quotas.NewTracked(quotas.NewNoLimit())
	return &Client{
		spec: Spec{RetryOptions: retry},
		limiter: limiter,
	}
}

func TestDecideRetry_StopsAtMaxRetries(t *testing.T) {
	c := newTestClient(RetryOptions{MaxRetries: 2, Retry5xxs: Bool(true)})
	d := c.decideRetry(2, 500, nil)
	assert.False(t, d.Retry)
}

func TestDecideRetry_429SetsIsRateLimited(t *testing.T) {
	c := newTestClient(RetryOptions{MaxRetries: 3, Retry429s: Bool(true), RetryBackoffBaseTime: time.Second})
	d := c.decideRetry(0, 429, nil)
	assert.True(t, d.Retry)
	assert.True(t, d.IsRateLimited)
}

func TestDecideRetry_5xxDoesNotSetIsRateLimited(t *testing.T) {
	c := newTestClient(RetryOptions{MaxRetries: 3, Retry5xxs: Bool(true), RetryBackoffBaseTime: time.Second})
	d := c.decideRetry(0, 503, nil)
	assert.True(t, d.Retry)
	assert.False(t, d.IsRateLimited)
}

func TestDecideRetry_ExplicitStatusCodeList(t *testing.T) {
	c := newTestClient(RetryOptions{MaxRetries: 3, RetryStatusCodes: []int{418}, RetryBackoffBaseTime: time.Second})
	assert.True(t, c.decideRetry(0, 418, nil).Retry)
	assert.False(t, c.decideRetry(0, 404, nil).Retry)
}

func TestDecideRetry_RetryableTransportError(t *testing.T) {
	c := newTestClient(RetryOptions{MaxRetries: 3, RetryBackoffBaseTime: time.Second})
	err := &TransportError{Code: "ECONNRESET", Err: assert.AnError}
	d := c.decideRetry(0, 0, err)
	assert.True(t, d.Retry)
}

func TestDecideRetry_RetryHandlerFallback(t *testing.T) {
	called := false
	c := newTestClient(RetryOptions{
		MaxRetries:           3,
		RetryBackoffBaseTime: time.Second,
		RetryHandler: func(err error) bool {
			called = true
			return true
		},
	})
	d := c.decideRetry(0, 0, assert.AnError)
	assert.True(t, d.Retry)
	assert.True(t, called)
}

func TestDecideRetry_UnsetRetryFlagsDefaultToTrue(t *testing.T) {
	opts := RetryOptions{MaxRetries: 3, RetryBackoffBaseTime: time.Second}.withDefaults()
	c := newTestClient(opts)

	d429 := c.decideRetry(0, 429, nil)
	assert.True(t, d429.Retry, "a spec that omits retry429s must still retry 429s")
	assert.True(t, d429.IsRateLimited)

	d5xx := c.decideRetry(0, 503, nil)
	assert.True(t, d5xx.Retry, "a spec that omits retry5xxs must still retry 5xxs")
}

func TestDecideRetry_ExplicitFalseOverridesDefault(t *testing.T) {
	opts := RetryOptions{MaxRetries: 3, Retry429s: Bool(false), RetryBackoffBaseTime: time.Second}.withDefaults()
	c := newTestClient(opts)

	d := c.decideRetry(0, 429, nil)
	assert.False(t, d.Retry, "an explicit false must not be overridden by the default")
}

func TestBackoff_ExponentialByDefault(t *testing.T) {
	c := newTestClient(RetryOptions{RetryBackoffBaseTime: 100 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 400*time.Millisecond, c.backoff(2))
	assert.Equal(t, 900*time.Millisecond, c.backoff(3))
}

func TestBackoff_LinearWhenConfigured(t *testing.T) {
	c := newTestClient(RetryOptions{RetryBackoffBaseTime: 100 * time.Millisecond, RetryBackoffMethod: "linear"})
	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 300*time.Millisecond, c.backoff(3))
}

func TestBackoff_TokenBucketIntervalOverridesBaseTime(t *testing.T) {
	tb := quotas.NewTokenBucket(clock.NewFake(time.Unix(0, 0)), 250*time.Millisecond, 1, 1)
	defer tb.Stop()
	c := newTestClient(RetryOptions{RetryBackoffBaseTime: time.Second, RetryBackoffMethod: "exponential"})
	c.limiter = quotas.NewTracked(tb)
	assert.Equal(t, 250*time.Millisecond, c.backoff(1))
}
