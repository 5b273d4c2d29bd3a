package redistransport

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (Client, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "test:"), srv
}

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	received := make(chan string, 1)
	sub, err := c.Subscribe(ctx, []string{"requestAdded", "requestDone"}, func(channel string, payload []byte) {
		if channel == "requestAdded" {
			received <- string(payload)
		}
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, c.Publish(ctx, "requestAdded", []byte(`{"clientName":"weather"}`)))

	select {
	case payload := <-received:
		assert.Equal(t, `{"clientName":"weather"}`, payload)
	case <-time.After(time.Second):
		t.Fatal("did not receive published message")
	}
}

func TestSubscribe_StripsKeyPrefixFromChannelName(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	received := make(chan string, 1)
	sub, err := c.Subscribe(ctx, []string{"instanceStarted"}, func(channel string, payload []byte) {
		received <- channel
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, c.Publish(ctx, "instanceStarted", []byte("x")))

	select {
	case channel := <-received:
		assert.Equal(t, "instanceStarted", channel)
	case <-time.After(time.Second):
		t.Fatal("did not receive published message")
	}
}

func TestKeyNamespacing_SetAndGetRoundTrip(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "instance:abc", []byte("payload"), time.Minute))

	value, found, err := c.Get(ctx, "instance:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "payload", string(value))

	assert.True(t, srv.Exists("test:requestHandler:instance:abc"), "key must be namespaced with the requestHandler: prefix")
}

func TestGet_MissingKeyReturnsFoundFalse(t *testing.T) {
	c, _ := newTestClient(t)
	_, found, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetAndTrack_PipelinesSetAndSAdd(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetAndTrack(ctx, KeyInstance("abc"), []byte("meta"), time.Minute, KeyInstances, "abc"))

	_, found, err := c.Get(ctx, KeyInstance("abc"))
	require.NoError(t, err)
	assert.True(t, found)

	members, err := c.SMembers(ctx, KeyInstances)
	require.NoError(t, err)
	assert.Contains(t, members, "abc")
}

func TestExpireAndDel(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Expire(ctx, "k", time.Hour))
	require.NoError(t, c.Del(ctx, "k"))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
