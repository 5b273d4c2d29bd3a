// Package redistransport is the thin key/value + pub/sub wrapper backing
// the coordinator: one publisher connection, one dedicated subscriber
// connection, pipelined writes, and a namespaced key layout. It wraps
// github.com/redis/go-redis/v9, following the same redis.UniversalClient
// adapter shape a gateway's cache and user-store adapters use.
package redistransport

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vivo-us/request-handler/internal/rlog"
)

// Client is the transport surface the rest of the coordinator depends on.
// Keeping it as an interface (rather than exposing *redis.Client directly)
// is what lets tests substitute a miniredis-backed instance or a gomock
// fake.
type Client interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels []string, handler Handler) (Subscription, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// SetAndTrack pipelines a Set (with TTL) and an SAdd as a single round trip, used
	// by instance registration (§4.2: persist metadata, add to the
	// instance set, all before the first heartbeat TTL could lapse).
	SetAndTrack(ctx context.Context, key string, value []byte, ttl time.Duration, setKey string, member string) error

	Close() error
}

// Handler receives one pub/sub message. Channel is the bare channel name
// without the key prefix.
type Handler func(channel string, payload []byte)

// Subscription is returned by Subscribe; closing it stops delivery.
type Subscription interface {
	Close() error
}

type client struct {
	rdb    redis.UniversalClient
	prefix string
	logger rlog.Logger
}

var _ Client = (*client)(nil)

// New wraps an existing redis.UniversalClient. keyPrefix is prepended to
// every key and channel, "<prefix>requestHandler:"
// namespace (keyPrefix itself is the caller-supplied "<prefix>" portion;
// the "requestHandler:" literal is added here).
func New(rdb redis.UniversalClient, keyPrefix string) Client {
	return &client{rdb: rdb, prefix: keyPrefix + "requestHandler:", logger: rlog.NewNop()}
}

// NewWithLogger is New plus a logger used to report panics recovered from
// pub/sub delivery goroutines.
func NewWithLogger(rdb redis.UniversalClient, keyPrefix string, logger rlog.Logger) Client {
	if logger == nil {
		logger = rlog.NewNop()
	}
	return &client{rdb: rdb, prefix: keyPrefix + "requestHandler:", logger: logger}
}

func (c *client) namespaced(key string) string { return c.prefix + key }

func (c *client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, c.namespaced(channel), payload).Err()
}

func (c *client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.namespaced(key), value, ttl).Err()
}

func (c *client) SAdd(ctx context.Context, key string, members ...string) error {
	return c.rdb.SAdd(ctx, c.namespaced(key), toAny(members)...).Err()
}

func (c *client) SRem(ctx context.Context, key string, members ...string) error {
	return c.rdb.SRem(ctx, c.namespaced(key), toAny(members)...).Err()
}

func (c *client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, c.namespaced(key), ttl).Err()
}

func (c *client) Del(ctx context.Context, keys ...string) error {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.namespaced(k)
	}
	return c.rdb.Del(ctx, namespaced...).Err()
}

func (c *client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.rdb.Get(ctx, c.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.rdb.SMembers(ctx, c.namespaced(key)).Result()
}

func (c *client) HSet(ctx context.Context, key string, fields map[string]string) error {
	flat := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		flat = append(flat, k, v)
	}
	return c.rdb.HSet(ctx, c.namespaced(key), flat...).Err()
}

func (c *client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, c.namespaced(key)).Result()
}

func (c *client) SetAndTrack(ctx context.Context, key string, value []byte, ttl time.Duration, setKey string, member string) error {
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, c.namespaced(key), value, ttl)
	pipe.SAdd(ctx, c.namespaced(setKey), member)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *client) Close() error { return c.rdb.Close() }

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
