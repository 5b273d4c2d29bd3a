package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/internal/rerrors"
)

// StartHealthCheck runs the per-client reconciliation tick, 10s default:
// it drops requests whose heartbeat has lapsed and restarts the admission
// loop. It does not check or restart the token-bucket ticker. It
// is only meaningful while this
// instance is controller, but runs unconditionally and no-ops otherwise,
// since role can change between ticks.
func (c *Client) StartHealthCheck() {
	interval := time.Duration(c.spec.HealthCheckIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := c.clockSrc.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.Chan():
				c.reconcile()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Client) reconcile() {
	if c.Role() != RoleController {
		return
	}

	dropped := c.requests.ExpireStale(c.clockSrc.Now(), requestHeartbeatTTL)
	for _, id := range dropped {
		c.logger.Warn("dropping stale request", zap.String("requestId", id), zap.Error(rerrors.StaleRequest(id)))
	}

	c.tryStartLoop()
}
