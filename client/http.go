package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer is the transport seam the request pipeline executes calls
// through (non-goal: "the HTTP transport library"). Embedding
// applications are expected to supply their own; DefaultHTTPDoer wraps
// net/http.Client as the simplest correct thing that runs standalone.
//
//go:generate mockgen -source=http.go -destination=mock_http_test.go -package=client
type HTTPDoer interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest is the config shape the handleRequest: standard
// HTTP fields plus baseURL, resolved relative to any client/subclient
// defaults before this point.
type HTTPRequest struct {
	Method  string
	URL     string
	BaseURL string
	Headers map[string]string
	Params  map[string]string
	Data    []byte
}

type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// TransportError distinguishes a failure that never reached the server
// (DNS, connection reset, timeout) from a non-2xx HTTP response, since spec
// §4.5's retry rules treat "transport error code in {ECONNRESET, ETIMEDOUT,
// ECONNABORTED}" as its own branch, separate from status-code checks.
type TransportError struct {
	Code string // e.g. "ECONNRESET", "ETIMEDOUT", "ECONNABORTED"
	Err  error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type defaultHTTPDoer struct {
	client *http.Client
}

var _ HTTPDoer = (*defaultHTTPDoer)(nil)

// NewDefaultHTTPDoer builds the stdlib-backed default. This is an explicit
// non-goal boundary default ("the HTTP transport library" is an
// external collaborator); embedding applications supplying their own
// interceptor/retry-aware client should implement HTTPDoer directly instead.
func NewDefaultHTTPDoer(timeout time.Duration) HTTPDoer {
	return &defaultHTTPDoer{client: &http.Client{Timeout: timeout}}
}

func (d *defaultHTTPDoer) Do(ctx context.Context, r *HTTPRequest) (*HTTPResponse, error) {
	full := r.URL
	if r.BaseURL != "" {
		base, err := url.Parse(r.BaseURL)
		if err != nil {
			return nil, classifyTransportErr(err)
		}
		ref, err := url.Parse(r.URL)
		if err != nil {
			return nil, classifyTransportErr(err)
		}
		full = base.ResolveReference(ref).String()
	}

	u, err := url.Parse(full)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if len(r.Params) > 0 {
		q := u.Query()
		for k, v := range r.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if len(r.Data) > 0 {
		body = bytes.NewReader(r.Data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportErr(err)
	}

	return &HTTPResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}

// classifyTransportErr maps net/http-level failures onto the
// {ECONNRESET, ETIMEDOUT, ECONNABORTED} vocabulary this retries on,
// since Go's net package does not use those POSIX names directly.
func classifyTransportErr(err error) error {
	msg := err.Error()
	switch {
	case containsAny(msg, "connection reset"):
		return &TransportError{Code: "ECONNRESET", Err: err}
	case containsAny(msg, "timeout", "deadline exceeded", "i/o timeout"):
		return &TransportError{Code: "ETIMEDOUT", Err: err}
	case containsAny(msg, "connection refused", "broken pipe", "use of closed network connection"):
		return &TransportError{Code: "ECONNABORTED", Err: err}
	default:
		return &TransportError{Code: "", Err: err}
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
