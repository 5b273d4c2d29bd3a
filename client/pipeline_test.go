package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rlog"
	"github.com/vivo-us/request-handler/quotas"
)

// fakeTransport is a minimal in-memory redistransport.Client stand-in: the
// pipeline only ever calls Publish on the happy/retry paths exercised here.
type fakeTransport struct {
	redistransport.Client
	mu        sync.Mutex
	published []string
}

func (f *fakeTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	f.published = append(f.published, channel)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func newNoLimitTestClient(t *testing.T, http HTTPDoer, retry RetryOptions) (*Client, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	c := &Client{
		name:      "weather",
		logger:    rlog.NewNop(),
		transport: transport,
		http:      http,
		clockSrc:  clock.NewFake(time.Unix(0, 0)),
		spec:      Spec{Name: "weather", RetryOptions: retry},
		limiter:   quotas.NewTracked(quotas.NewNoLimit()),
		requests:  newRequestMap(),
		bus:       newEventBus(),
	}
	return c, transport
}

func TestHandleRequest_SuccessPublishesRequestDone(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&HTTPResponse{StatusCode: 200, Body: []byte("ok")}, nil)

	c, transport := newNoLimitTestClient(t, mockHTTP, RetryOptions{MaxRetries: 3})

	resp, err := c.HandleRequest(context.Background(), HandleRequestInput{ClientName: "weather", URL: "/forecast"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, transport.channels(), redistransport.ChanRequestDone)
}

func TestHandleRequest_RetriesOn5xxThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPDoer(ctrl)
	gomock.InOrder(
		mockHTTP.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&HTTPResponse{StatusCode: 503}, nil),
		mockHTTP.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&HTTPResponse{StatusCode: 200, Body: []byte("ok")}, nil),
	)

	c, transport := newNoLimitTestClient(t, mockHTTP, RetryOptions{MaxRetries: 3, Retry5xxs: Bool(true), RetryBackoffBaseTime: 0})

	resp, err := c.HandleRequest(context.Background(), HandleRequestInput{ClientName: "weather", URL: "/forecast"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	channels := transport.channels()
	doneCount := 0
	for _, ch := range channels {
		if ch == redistransport.ChanRequestDone {
			doneCount++
		}
	}
	assert.Equal(t, 2, doneCount, "one requestDone for the failed attempt, one for the success")
}

func TestHandleRequest_ExhaustsRetriesAndReturnsStatusError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&HTTPResponse{StatusCode: 503}, nil).Times(2)

	c, _ := newNoLimitTestClient(t, mockHTTP, RetryOptions{MaxRetries: 1, Retry5xxs: Bool(true), RetryBackoffBaseTime: 0})

	_, err := c.HandleRequest(context.Background(), HandleRequestInput{ClientName: "weather", URL: "/forecast"})
	require.Error(t, err)
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 503, code)
}

func TestHandleRequest_AppliesRequestDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHTTP := NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
			assert.Equal(t, "https://api.example.com", req.BaseURL)
			assert.Equal(t, "v1", req.Headers["apiVersion"])
			return &HTTPResponse{StatusCode: 200}, nil
		})

	c, _ := newNoLimitTestClient(t, mockHTTP, RetryOptions{MaxRetries: 3})
	c.spec.RequestOptions.Defaults = Defaults{
		BaseURL: "https://api.example.com",
		Headers: map[string]string{"apiVersion": "v1"},
	}

	_, err := c.HandleRequest(context.Background(), HandleRequestInput{ClientName: "weather", URL: "/forecast"})
	require.NoError(t, err)
}
