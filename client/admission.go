package client

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rlog"
	"github.com/vivo-us/request-handler/quotas"
	"github.com/vivo-us/request-handler/record"
)

// tryStartLoop starts the admission loop iff this instance is currently
// controller for the client, no loop is already running, and there is at
// least one admissible request ("start a loop only if no other
// loop is active and there is at least one request to consider").
func (c *Client) tryStartLoop() {
	if c.Role() != RoleController {
		return
	}
	if _, ok := c.requests.Next(); !ok {
		return
	}

	c.loopMu.Lock()
	if c.loopToken != "" {
		c.loopMu.Unlock()
		return
	}
	token := newLoopGuardToken()
	c.loopToken = token
	c.loopMu.Unlock()

	go c.runLoop(token)
}

// runLoop is the controller's single admission loop . It holds
// loopToken as a guard: any method that wants to know whether "this"
// invocation is still the active loop compares against the token it was
// handed at start, so a stale goroutine from a prior ownership transition
// can never mutate state a newer loop owns.
func (c *Client) runLoop(token string) {
	defer func() { rlog.CapturePanic(recover(), c.logger, nil) }()
	for {
		if c.Role() != RoleController {
			c.endLoop(token)
			return
		}
		if c.isFrozenOrThawGated() {
			c.endLoop(token)
			return
		}

		rec, ok := c.requests.Next()
		if !ok {
			c.endLoop(token)
			return
		}

		limiter := c.Limiter()
		if err := limiter.Admit(context.Background(), rec.Cost); err != nil {
			c.endLoop(token)
			return
		}

		if !c.stillOwnsLoop(token) {
			// A newer loop took over mid-Admit; release what we just
			// admitted back rather than double-count it.
			limiter.Done(rec.Cost)
			return
		}

		rec.Status = record.StatusInProgress
		c.requests.MarkDirty()
		c.publishRequestReady(rec)

		if limiter.Type() == quotas.TypeTokenBucket {
			c.publishTokensUpdated()
		}

		c.freezeMu.Lock()
		thawing := c.thawRequestCount > 0
		if thawing {
			c.thawRequestID = rec.RequestID
		}
		c.freezeMu.Unlock()
		if thawing {
			// step 5: release at most one request per cycle while
			// thawing, then stop until requestDone resolves it.
			c.endLoop(token)
			return
		}
	}
}

func (c *Client) stillOwnsLoop(token string) bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.loopToken == token
}

func (c *Client) endLoop(token string) {
	c.loopMu.Lock()
	if c.loopToken == token {
		c.loopToken = ""
	}
	c.loopMu.Unlock()
}

func (c *Client) isFrozenOrThawGated() bool {
	c.freezeMu.Lock()
	defer c.freezeMu.Unlock()
	if c.frozen {
		return true
	}
	return c.thawRequestCount > 0 && c.thawRequestID != ""
}

// OnRequestAdded is the controller-side handler for the requestAdded
// channel ("places it in its priority-ordered map, runs the
// admission loop").
func (c *Client) OnRequestAdded(payload []byte) {
	var msg requestAddedMsg
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Record == nil {
		return
	}
	c.requests.Put(msg.Record, c.clockSrc.Now())
	c.tryStartLoop()
}

// OnRequestHeartbeat refreshes a request's liveness timestamp on the
// controller (request liveness tracking).
func (c *Client) OnRequestHeartbeat(payload []byte) {
	var msg requestHeartbeatMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	c.requests.Touch(msg.RequestID, c.clockSrc.Now())
}

// OnRequestReady is the originator-side handler: it resolves the local
// event bus waiter so handleRequest's blocked goroutine can proceed (spec
// §2: "the originating Client...is waiting on its local event bus").
func (c *Client) OnRequestReady(payload []byte) {
	var msg requestReadyMsg
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Record == nil {
		return
	}
	c.bus.Resolve(msg.Record.RequestID, msg.Record)
}

// OnRequestDone is the controller-side handler: it releases any
// concurrency slot, evaluates freeze/thaw, and removes the record from the
// local map .
func (c *Client) OnRequestDone(payload []byte) {
	var msg requestDoneMsg
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Record == nil {
		return
	}

	c.Limiter().Done(msg.Record.Cost)
	c.requests.Remove(msg.Record.RequestID)

	c.freezeMu.Lock()
	wasThawGate := c.thawRequestID == msg.Record.RequestID
	c.freezeMu.Unlock()

	waitTime := time.Duration(msg.WaitTimeMs) * time.Millisecond
	if waitTime > 0 {
		if wasThawGate {
			// thaw semantics: each failure leaves the counter and re-freezes,
			// so clear the gate here; the next admitted request becomes the
			// new thaw probe once this freeze lapses.
			c.freezeMu.Lock()
			c.thawRequestID = ""
			c.freezeMu.Unlock()
		}
		c.freeze(waitTime, msg.IsRateLimited)
	} else if wasThawGate {
		c.freezeMu.Lock()
		c.thawRequestID = ""
		if msg.Success && c.thawRequestCount > 0 {
			c.thawRequestCount--
		}
		c.freezeMu.Unlock()
		c.tryStartLoop()
	} else {
		c.tryStartLoop()
	}
}

// freeze implements: cancel any prior freeze timer, enter
// frozen, zero token-bucket tokens, arm the thaw counter if this was a
// rate-limit signal, and schedule the unfreeze.
func (c *Client) freeze(waitTime time.Duration, isRateLimited bool) {
	c.freezeMu.Lock()
	c.frozen = true
	if c.freezeTimer != nil {
		c.freezeTimer.Stop()
	}
	if isRateLimited && c.thawRequestCount == 0 {
		thawCount := c.spec.RetryOptions.ThawRequestCount
		if thawCount == 0 {
			thawCount = defaultThawRequestCount
		}
		c.thawRequestCount = thawCount
	}
	c.freezeMu.Unlock()

	if tb, ok := c.baseLimiter().(*quotas.TokenBucket); ok {
		tb.ExternalRateLimit()
		tb.Pause()
	} else {
		c.baseLimiter().ExternalRateLimit()
	}

	c.freezeMu.Lock()
	c.freezeTimer = c.clockSrc.AfterFunc(waitTime, c.thaw)
	c.freezeMu.Unlock()

	c.logger.Warn("client frozen", zap.Duration("waitTime", waitTime), zap.Bool("isRateLimited", isRateLimited))
}

func (c *Client) thaw() {
	c.freezeMu.Lock()
	c.frozen = false
	c.freezeMu.Unlock()

	if tb, ok := c.baseLimiter().(*quotas.TokenBucket); ok {
		tb.Resume()
	}
	c.tryStartLoop()
}

// OnClientTokensUpdated and OnRateLimitUpdated keep every instance's copy
// of a client's policy state advisory-synced; the controller remains
// authoritative, and a rateLimitChange hook may mutate policy and publish
// rateLimitUpdated.

func (c *Client) OnClientTokensUpdated(payload []byte) {
	// Advisory only; the controller's own Limiter is authoritative and this
	// instance does not admit locally unless it becomes controller, at
	// which point its limiter already reflects reality from having run the
	// loop itself. Nothing to apply here beyond having received it (kept as
	// a named handler so the Instance router has a uniform dispatch table).
	_ = payload
}

func (c *Client) OnRateLimitUpdated(payload []byte, resolve quotas.Resolver) {
	var msg rateLimitUpdatedMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	newLimiter, err := quotas.New(msg.RateLimit, c.clockSrc, resolve)
	if err != nil {
		c.logger.Error("rateLimitUpdated: rebuilding limiter", zap.Error(err))
		return
	}

	c.limiterMu.Lock()
	old := c.limiter.Unwrap()
	c.limiter = quotas.NewTracked(newLimiter)
	c.mu.Lock()
	c.spec.RateLimit = msg.RateLimit
	c.mu.Unlock()
	c.limiterMu.Unlock()

	if stoppable, ok := old.(quotas.Stoppable); ok {
		stoppable.Stop()
	}
	c.tryStartLoop()
}

func (c *Client) publishRequestReady(rec *record.Record) {
	payload, _ := json.Marshal(requestReadyMsg{ClientName: c.name, Record: rec})
	if err := c.transport.Publish(context.Background(), redistransport.ChanRequestReady, payload); err != nil {
		c.logger.Error("publish requestReady", zap.Error(err))
	}
}

func (c *Client) publishTokensUpdated() {
	snap := c.Limiter().Snapshot()
	payload, _ := json.Marshal(clientTokensUpdatedMsg{ClientName: c.name, Snapshot: snap})
	if err := c.transport.Publish(context.Background(), redistransport.ChanClientTokensUpdated, payload); err != nil {
		c.logger.Error("publish clientTokensUpdated", zap.Error(err))
	}
}

func (c *Client) publishRateLimitUpdated(spec quotas.Spec) {
	payload, _ := json.Marshal(rateLimitUpdatedMsg{ClientName: c.name, RateLimit: spec})
	if err := c.transport.Publish(context.Background(), redistransport.ChanRateLimitUpdated, payload); err != nil {
		c.logger.Error("publish rateLimitUpdated", zap.Error(err))
	}
}
