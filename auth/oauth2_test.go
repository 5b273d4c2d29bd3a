package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/redistransport"
)

type stubHTTPDoer struct {
	calls int
	resp  *Response
	err   error
}

func (s *stubHTTPDoer) Do(req *Request) (*Response, error) {
	s.calls++
	return s.resp, s.err
}

func newOAuth2TestSetup(t *testing.T) (redistransport.Client, Encryptor) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	enc, err := NewAESGCMEncryptor([]byte("01234567890123456789012345678901"))
	require.NoError(t, err)
	return redistransport.New(rdb, "test:"), enc
}

func refreshResponse(accessToken string, expiresIn int64) *Response {
	body, _ := json.Marshal(map[string]any{"access_token": accessToken, "expires_in": expiresIn})
	return &Response{StatusCode: 200, Body: body}
}

func TestOAuth2_FirstRequestTriggersRefresh(t *testing.T) {
	redisClient, enc := newOAuth2TestSetup(t)
	http := &stubHTTPDoer{resp: refreshResponse("tok-1", 3600)}

	a, err := New(Spec{Type: TypeOAuth2ClientCredentials, URL: "https://auth.example/token"}, "weather", redisClient, enc, http, clock.NewFake(time.Unix(0, 0)))
	require.NoError(t, err)

	headers, err := a.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", headers["Authorization"])
	assert.Equal(t, 1, http.calls)
}

func TestOAuth2_SubsequentRequestReadsCacheWithoutRefresh(t *testing.T) {
	redisClient, enc := newOAuth2TestSetup(t)
	http := &stubHTTPDoer{resp: refreshResponse("tok-1", 3600)}

	a, err := New(Spec{Type: TypeOAuth2ClientCredentials, URL: "https://auth.example/token"}, "weather", redisClient, enc, http, clock.NewFake(time.Unix(0, 0)))
	require.NoError(t, err)

	_, err = a.Headers(context.Background())
	require.NoError(t, err)
	_, err = a.Headers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, http.calls, "second call must read the cached token, not refresh again")
}

func TestOAuth2_SecondInstanceSharesCachedToken(t *testing.T) {
	redisClient, enc := newOAuth2TestSetup(t)
	spec := Spec{Type: TypeOAuth2ClientCredentials, URL: "https://auth.example/token"}
	fakeTime := clock.NewFake(time.Unix(0, 0))

	firstHTTP := &stubHTTPDoer{resp: refreshResponse("tok-1", 3600)}
	first, err := New(spec, "weather", redisClient, enc, firstHTTP, fakeTime)
	require.NoError(t, err)
	_, err = first.Headers(context.Background())
	require.NoError(t, err)

	secondHTTP := &stubHTTPDoer{resp: refreshResponse("tok-2", 3600)}
	second, err := New(spec, "weather", redisClient, enc, secondHTTP, fakeTime)
	require.NoError(t, err)
	headers, err := second.Headers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", headers["Authorization"], "second instance must see the first instance's cached token")
	assert.Equal(t, 0, secondHTTP.calls)
}

func TestOAuth2_RefreshesAgainWithinExpiryLeeway(t *testing.T) {
	redisClient, enc := newOAuth2TestSetup(t)
	fakeTime := clock.NewFake(time.Unix(0, 0))
	http := &stubHTTPDoer{resp: refreshResponse("tok-1", 60)} // expires in 60s, well inside the 5m leeway

	a, err := New(Spec{Type: TypeOAuth2ClientCredentials, URL: "https://auth.example/token"}, "weather", redisClient, enc, http, fakeTime)
	require.NoError(t, err)

	_, err = a.Headers(context.Background())
	require.NoError(t, err)
	_, err = a.Headers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, http.calls, "a token expiring within the leeway window must be refreshed again")
}
