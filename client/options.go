// Package client implements the per-named-target coordinator: the ordered
// request map, the controller's admission loop, heartbeats, interceptors,
// HTTP execution, retry, and freeze/thaw. It is the largest single
// component, generalizing policy composition and coalesced-callback
// pacing from "count against a metrics scope" to "admit against a
// distributed queue."
package client

import (
	"context"
	"time"

	"github.com/vivo-us/request-handler/auth"
	"github.com/vivo-us/request-handler/quotas"
)

// Defaults is requestOptions.defaults: values shallow-merged
// under an explicit call's config, so the caller's values always win (spec
// §4.4 step 1).
type Defaults struct {
	Headers map[string]string `json:"headers,omitempty"`
	BaseURL string            `json:"baseURL,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// RequestInterceptor runs after a record is admitted and before the HTTP
// call executes (step 4). It may mutate the outgoing request.
type RequestInterceptor func(ctx context.Context, req *HTTPRequest) error

// ResponseInterceptor runs after a successful HTTP call (step 5),
// before rateLimitChange.
type ResponseInterceptor func(ctx context.Context, resp *HTTPResponse) error

// RateLimitChangeFunc inspects a successful response against the policy
// spec in effect and may return a replacement (rateLimitChange).
// Returning ok=false leaves the policy unchanged.
type RateLimitChangeFunc func(old quotas.Spec, resp *HTTPResponse) (newSpec quotas.Spec, ok bool)

// RetryHandler is consulted as the last step of retry eligibility (spec
// §4.5: "else consult retryHandler(error)").
type RetryHandler func(err error) bool

// Bool returns a pointer to b, for populating the tri-state RetryOptions
// fields (Retry429s, Retry5xxs) whose zero value ("unset") must be
// distinguishable from an explicit false.
func Bool(b bool) *bool { return &b }

// RetryOptions is the retryOptions field of a client spec ,
// defaults matching listed defaults. Retry429s/Retry5xxs are *bool rather
// than bool so a generator spec that omits them can still be defaulted to
// true: a plain bool's zero value is indistinguishable from an explicit
// false, which would silently disable retry-on-429/5xx (and, with it,
// freeze/thaw) for every spec that doesn't set them.
type RetryOptions struct {
	MaxRetries           int           `json:"maxRetries,omitempty"`
	RetryBackoffBaseTime time.Duration `json:"retryBackoffBaseTime,omitempty"`
	// RetryBackoffMethod is "exponential" (p=2, default) or "linear" (p=1).
	RetryBackoffMethod string       `json:"retryBackoffMethod,omitempty"`
	Retry429s          *bool        `json:"retry429s,omitempty"`
	Retry5xxs          *bool        `json:"retry5xxs,omitempty"`
	RetryHandler       RetryHandler `json:"-"`
	RetryStatusCodes   []int        `json:"retryStatusCodes,omitempty"`
	ThawRequestCount   int          `json:"thawRequestCount,omitempty"`
}

// DefaultRetryOptions returns listed defaults:
// maxRetries=3, retryBackoffBaseTime=1000ms, exponential, retry429s and
// retry5xxs true, thawRequestCount=3.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:           3,
		RetryBackoffBaseTime: time.Second,
		RetryBackoffMethod:   "exponential",
		Retry429s:            Bool(true),
		Retry5xxs:            Bool(true),
		ThawRequestCount:     3,
	}
}

func (r RetryOptions) withDefaults() RetryOptions {
	out := r
	if out.MaxRetries == 0 {
		out.MaxRetries = 3
	}
	if out.RetryBackoffBaseTime == 0 {
		out.RetryBackoffBaseTime = time.Second
	}
	if out.RetryBackoffMethod == "" {
		out.RetryBackoffMethod = "exponential"
	}
	if out.ThawRequestCount == 0 {
		out.ThawRequestCount = 3
	}
	if out.Retry429s == nil {
		out.Retry429s = Bool(true)
	}
	if out.Retry5xxs == nil {
		out.Retry5xxs = Bool(true)
	}
	return out
}

// RequestOptions is the requestOptions field of a client spec .
type RequestOptions struct {
	CleanupTimeout      time.Duration          `json:"cleanupTimeout,omitempty"`
	Metadata            map[string]any         `json:"metadata,omitempty"`
	Defaults            Defaults               `json:"defaults,omitempty"`
	RequestInterceptor  RequestInterceptor      `json:"-"`
	ResponseInterceptor ResponseInterceptor     `json:"-"`
}

// Spec is the ClientSpec generator output SubClients is
// consumed and removed by Flatten  before a Spec reaches NewClient.
type Spec struct {
	Name string `json:"name"`

	RateLimit       quotas.Spec         `json:"rateLimit,omitempty"`
	RateLimitChange RateLimitChangeFunc `json:"-"`

	RequestOptions RequestOptions `json:"requestOptions,omitempty"`
	RetryOptions   RetryOptions   `json:"retryOptions,omitempty"`

	HTTPStatusCodesToMute []int `json:"httpStatusCodesToMute,omitempty"`
	HealthCheckIntervalMs int64 `json:"healthCheckIntervalMs,omitempty"`

	Metadata     map[string]any `json:"metadata,omitempty"`
	AxiosOptions map[string]any `json:"axiosOptions,omitempty"`

	Authentication *auth.Spec `json:"authentication,omitempty"`

	SubClients []Spec `json:"subClients,omitempty"`
}

func (s Spec) withDefaults() Spec {
	out := s
	out.RetryOptions = out.RetryOptions.withDefaults()
	if out.HealthCheckIntervalMs == 0 {
		out.HealthCheckIntervalMs = 10000
	}
	return out
}

// HandleRequestInput is the handleRequest config
type HandleRequestInput struct {
	ClientName string
	Method     string
	URL        string
	BaseURL    string
	Headers    map[string]string
	Params     map[string]string
	Data       []byte
	Priority   int // default 1
	Cost       int // default 1
	Metadata   map[string]any
}
