package redistransport

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vivo-us/request-handler/internal/rlog"
)

// maxConcurrentDeliveries bounds the "dedicated subscriber connection, with
// listener count limit": a burst of pub/sub messages fans out
// to at most this many concurrent handler invocations, the same shape as
// the same shape as any RPC dispatcher capping fan-out via
// errgroup.Group.SetLimit(maxConcurrency).
const maxConcurrentDeliveries = 64

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return s.pubsub.Close()
}

// Subscribe opens one dedicated subscriber connection for all channels and
// dispatches messages to handler, stripping the key prefix before handing
// the bare channel name to the caller. Each message is delivered on its own
// bounded goroutine so a slow handler for one channel cannot stall delivery
// of the others.
func (c *client) Subscribe(ctx context.Context, channels []string, handler Handler) (Subscription, error) {
	namespaced := make([]string, len(channels))
	for i, ch := range channels {
		namespaced[i] = c.namespaced(ch)
	}

	pubsub := c.rdb.Subscribe(ctx, namespaced...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		var g errgroup.Group
		g.SetLimit(maxConcurrentDeliveries)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					_ = g.Wait()
					return
				}
				channel := strings.TrimPrefix(msg.Channel, c.prefix)
				payload := []byte(msg.Payload)
				g.Go(func() error {
					defer func() { rlog.CapturePanic(recover(), c.logger, nil) }()
					handler(channel, payload)
					return nil
				})
			case <-subCtx.Done():
				_ = g.Wait()
				return
			}
		}
	}()

	return sub, nil
}
