package client

import (
	"context"

	"github.com/vivo-us/request-handler/auth"
)

// authHTTPAdapter satisfies auth.HTTPDoer (no-context, OAuth2-refresh-only
// surface) on top of the richer, context-aware HTTPDoer the request
// pipeline uses. auth.Authenticator.Headers takes a ctx but the refresh
// call itself has no caller-supplied context to thread through, so refresh
// calls run against context.Background();
// refresh requests are short-lived token endpoint calls, not
// caller-cancelable pipeline requests.
type authHTTPAdapter struct {
	doer HTTPDoer
}

var _ auth.HTTPDoer = (*authHTTPAdapter)(nil)

func (a *authHTTPAdapter) Do(req *auth.Request) (*auth.Response, error) {
	resp, err := a.doer.Do(context.Background(), &HTTPRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Data:    req.Body,
	})
	if err != nil {
		return nil, err
	}
	return &auth.Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
