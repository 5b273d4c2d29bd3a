package client

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/vivo-us/request-handler/record"
)

// reannounceInterval is how often a still-unresolved request checks
// whether it should re-publish requestAdded, bounding the worst case from
// "messages may be lost" assumption.
const reannounceInterval = 5 * time.Second

// newAnnounceLimiter caps re-publishes per Client on this instance to a steady
// rate rather than one unthrottled ticker per in-flight request, since a
// burst of originators all losing their first requestAdded at once should
// not turn into a burst of redundant publishes. golang.org/x/time/rate is a
// natural fit here: unlike quotas.TokenBucket (which must not silently
// catch up tokens missed during a freeze, see tokenbucket.go), this is a
// plain local rate cap with no freeze semantics to violate, so the
// library's lazy wall-clock refill is exactly what is wanted.
func newAnnounceLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(reannounceInterval), 1)
}

// awaitReady blocks until requestReady resolves waitCh or ctx is done,
// periodically re-publishing requestAdded as a safety net against a lost
// pub/sub delivery. The re-announce cadence is capped by the Client's
// shared announceLimiter so many simultaneously waiting requests cannot
// turn into a publish storm.
func (c *Client) awaitReady(ctx context.Context, rec *record.Record, waitCh <-chan *record.Record) (*record.Record, error) {
	ticker := c.clockSrc.NewTicker(reannounceInterval)
	defer ticker.Stop()

	for {
		select {
		case ready := <-waitCh:
			return ready, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.Chan():
			if c.announceLimiter.Allow() {
				c.publishRequestAdded(rec)
			}
		}
	}
}
