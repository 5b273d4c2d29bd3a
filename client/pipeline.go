package client

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/quotas"
	"github.com/vivo-us/request-handler/record"
)

// HandleRequest is the public operation:
// handleRequest(config) -> response | error. It runs entirely on the
// originating instance; admission itself happens on whichever instance is
// currently controller, reached only through Redis pub/sub.
func (c *Client) HandleRequest(ctx context.Context, in HandleRequestInput) (*HTTPResponse, error) {
	priority := in.Priority
	if priority == 0 {
		priority = 1
	}
	cost := in.Cost
	if cost == 0 {
		cost = 1
	}

	httpReq := c.applyDefaults(&HTTPRequest{
		Method:  in.Method,
		URL:     in.URL,
		BaseURL: in.BaseURL,
		Headers: in.Headers,
		Params:  in.Params,
		Data:    in.Data,
	})

	retries := 0
	for {
		rec := &record.Record{
			RequestID:  uuid.NewString(),
			ClientName: c.name,
			Status:     record.StatusInQueue,
			Priority:   priority,
			Cost:       cost,
			Timestamp:  c.clockSrc.Now().UnixMilli(),
			Retries:    retries,
		}

		resp, attemptErr, statusCode := c.attempt(ctx, rec, httpReq)
		if attemptErr == nil {
			return resp, nil
		}

		if rec.Status == record.StatusInQueue && ctx.Err() != nil {
			// Never admitted; the controller's own request-liveness sweep
			//  reclaims the slot once this request's heartbeat
			// stops, so there is nothing to report via requestDone.
			return nil, attemptErr
		}

		decision := c.decideRetry(retries, statusCode, attemptErr)
		c.publishRequestDone(rec, false, decision.WaitTime, decision.IsRateLimited)
		if !decision.Retry {
			return nil, attemptErr
		}
		retries++
		c.logRetry(rec, statusCode, attemptErr, decision)
	}
}

// attempt runs one admission-through-HTTP cycle (steps 2-6 for a
// single try, excluding the retry loop itself).
func (c *Client) attempt(ctx context.Context, rec *record.Record, httpReq *HTTPRequest) (*HTTPResponse, error, int) {
	limiterType := c.Limiter().Type()

	if limiterType != quotas.TypeNoLimit {
		stopHeartbeat := c.startRequestHeartbeat(rec.RequestID)
		defer stopHeartbeat()

		waitCh := c.bus.Register(rec.RequestID)
		c.publishRequestAdded(rec)

		ready, err := c.awaitReady(ctx, rec, waitCh)
		if err != nil {
			c.bus.Cancel(rec.RequestID)
			return nil, err, 0
		}
		rec.Status = ready.Status
	} else {
		rec.Status = record.StatusInProgress
	}

	if c.spec.RequestOptions.RequestInterceptor != nil {
		if err := c.spec.RequestOptions.RequestInterceptor(ctx, httpReq); err != nil {
			return nil, err, 0
		}
	}
	if c.authn != nil {
		headers, err := c.authn.Headers(ctx)
		if err != nil {
			return nil, err, 0
		}
		if httpReq.Headers == nil {
			httpReq.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			httpReq.Headers[k] = v
		}
	}

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, err, 0
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.spec.RequestOptions.ResponseInterceptor != nil {
			if err := c.spec.RequestOptions.ResponseInterceptor(ctx, resp); err != nil {
				return nil, err, resp.StatusCode
			}
		}
		c.applyRateLimitChange(resp)
		c.publishRequestDone(rec, true, 0, false)
		return resp, nil, resp.StatusCode
	}

	c.logFailedResponse(rec, resp)
	return nil, httpStatusError(resp.StatusCode), resp.StatusCode
}

func (c *Client) applyDefaults(req *HTTPRequest) *HTTPRequest {
	defaults := c.spec.RequestOptions.Defaults
	if req.BaseURL == "" {
		req.BaseURL = defaults.BaseURL
	}
	req.Headers = mergeStringMap(defaults.Headers, req.Headers)
	req.Params = mergeStringMap(defaults.Params, req.Params)
	return req
}

func (c *Client) applyRateLimitChange(resp *HTTPResponse) {
	if c.spec.RateLimitChange == nil {
		return
	}
	newSpec, ok := c.spec.RateLimitChange(c.effectiveSpec().RateLimit, resp)
	if !ok {
		return
	}
	c.mu.Lock()
	c.spec.RateLimit = newSpec
	c.mu.Unlock()
	c.publishRateLimitUpdated(newSpec)
}

// startRequestHeartbeat begins a 1-second ticker publishing requestHeartbeat
// (step 2) and returns a stop function. Each retry iteration
// starts and stops its own heartbeat ("stop and restart the heartbeat
// between iterations", step 6).
func (c *Client) startRequestHeartbeat(requestID string) func() {
	ticker := c.clockSrc.NewTicker(requestHeartbeatInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.Chan():
				c.publishRequestHeartbeat(requestID)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		ticker.Stop()
	}
}

func (c *Client) publishRequestAdded(rec *record.Record) {
	payload, _ := json.Marshal(requestAddedMsg{ClientName: c.name, Record: rec})
	if err := c.transport.Publish(context.Background(), redistransport.ChanRequestAdded, payload); err != nil {
		c.logger.Error("publish requestAdded", zap.Error(err))
	}
}

func (c *Client) publishRequestHeartbeat(requestID string) {
	payload, _ := json.Marshal(requestHeartbeatMsg{ClientName: c.name, RequestID: requestID})
	if err := c.transport.Publish(context.Background(), redistransport.ChanRequestHeartbeat, payload); err != nil {
		c.logger.Error("publish requestHeartbeat", zap.Error(err))
	}
}

func (c *Client) publishRequestDone(rec *record.Record, success bool, waitTime time.Duration, isRateLimited bool) {
	payload, _ := json.Marshal(requestDoneMsg{
		ClientName:    c.name,
		Record:        rec,
		Success:       success,
		WaitTimeMs:    waitTime.Milliseconds(),
		IsRateLimited: isRateLimited,
	})
	if err := c.transport.Publish(context.Background(), redistransport.ChanRequestDone, payload); err != nil {
		c.logger.Error("publish requestDone", zap.Error(err))
	}
}

// logFailedResponse implements logging policy: error level unless
// the status code is muted, in which case debug level.
func (c *Client) logFailedResponse(rec *record.Record, resp *HTTPResponse) {
	fields := []zap.Field{zap.String("requestId", rec.RequestID), zap.Int("statusCode", resp.StatusCode)}
	if containsCode(c.spec.HTTPStatusCodesToMute, resp.StatusCode) {
		c.logger.Debug("request failed", fields...)
		return
	}
	c.logger.Error("request failed", fields...)
}

func (c *Client) logRetry(rec *record.Record, statusCode int, err error, decision retryDecision) {
	c.logger.Warn("retrying request",
		zap.String("requestId", rec.RequestID),
		zap.Int("statusCode", statusCode),
		zap.Error(err),
		zap.Duration("waitTime", decision.WaitTime),
		zap.Bool("isRateLimited", decision.IsRateLimited),
	)
}

type httpStatusErr struct{ statusCode int }

func httpStatusError(statusCode int) error { return &httpStatusErr{statusCode: statusCode} }

func (e *httpStatusErr) Error() string {
	return "request-handler: unexpected http status " + strconv.Itoa(e.statusCode)
}

// StatusCode extracts the status code from an error returned by
// HandleRequest when the failure was a non-2xx HTTP response, as opposed to
// a transport-level failure.
func StatusCode(err error) (int, bool) {
	se, ok := err.(*httpStatusErr)
	if !ok {
		return 0, false
	}
	return se.statusCode, true
}
