package client

// ApplyDefaults merges a generator's top-level spec under the instance-wide
// defaultClientOptions (an Instance constructor option), using the same
// shallow-merge rule as SubClient composition: the generator's explicit fields win,
// defaults fill in everything it left zero-valued.
func ApplyDefaults(defaults, spec Spec) Spec {
	return mergeChild(defaults, spec)
}

// Flatten expands every spec's subClients into standalone specs named
// "parent:child", SubClient composition rule, and returns the
// flat list with subClients cleared from every entry (parents included).
// Specs with no subClients pass through unchanged.
func Flatten(specs []Spec) []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		out = append(out, flattenOne(s)...)
	}
	return out
}

func flattenOne(parent Spec) []Spec {
	children := parent.SubClients
	parent.SubClients = nil
	out := []Spec{parent}
	for _, child := range children {
		merged := mergeChild(parent, child)
		merged.Name = parent.Name + ":" + child.Name
		out = append(out, flattenOne(merged)...)
	}
	return out
}

// mergeChild applies merge rule: child overrides scalar fields;
// metadata, axiosOptions, requestOptions, requestOptions.defaults, and
// retryOptions are shallow-merged with child values winning; the child's
// own subClients are preserved (flattenOne recurses into them) so
// multi-level subclient trees flatten correctly. A child that inherits its
// parent's authentication also inherits its token cache key: an unset
// ClientRedisKey is pinned to the parent's name.
func mergeChild(parent, child Spec) Spec {
	merged := child

	if child.RateLimit.Type == "" {
		merged.RateLimit = parent.RateLimit
		merged.RateLimitChange = parent.RateLimitChange
	}
	if child.Authentication == nil && parent.Authentication != nil {
		inherited := *parent.Authentication
		if inherited.ClientRedisKey == "" {
			inherited.ClientRedisKey = parent.Name
		}
		merged.Authentication = &inherited
	}
	if child.HealthCheckIntervalMs == 0 {
		merged.HealthCheckIntervalMs = parent.HealthCheckIntervalMs
	}
	if child.HTTPStatusCodesToMute == nil {
		merged.HTTPStatusCodesToMute = parent.HTTPStatusCodesToMute
	}

	merged.Metadata = mergeAnyMap(parent.Metadata, child.Metadata)
	merged.AxiosOptions = mergeAnyMap(parent.AxiosOptions, child.AxiosOptions)
	merged.RetryOptions = mergeRetryOptions(parent.RetryOptions, child.RetryOptions)
	merged.RequestOptions = mergeRequestOptions(parent.RequestOptions, child.RequestOptions)

	return merged
}

func mergeAnyMap(parent, child map[string]any) map[string]any {
	if len(parent) == 0 {
		return child
	}
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func mergeStringMap(parent, child map[string]string) map[string]string {
	if len(parent) == 0 {
		return child
	}
	out := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func mergeRetryOptions(parent, child RetryOptions) RetryOptions {
	merged := child
	if merged.MaxRetries == 0 {
		merged.MaxRetries = parent.MaxRetries
	}
	if merged.RetryBackoffBaseTime == 0 {
		merged.RetryBackoffBaseTime = parent.RetryBackoffBaseTime
	}
	if merged.RetryBackoffMethod == "" {
		merged.RetryBackoffMethod = parent.RetryBackoffMethod
	}
	if merged.RetryHandler == nil {
		merged.RetryHandler = parent.RetryHandler
	}
	if merged.RetryStatusCodes == nil {
		merged.RetryStatusCodes = parent.RetryStatusCodes
	}
	if merged.ThawRequestCount == 0 {
		merged.ThawRequestCount = parent.ThawRequestCount
	}
	if merged.Retry429s == nil {
		merged.Retry429s = parent.Retry429s
	}
	if merged.Retry5xxs == nil {
		merged.Retry5xxs = parent.Retry5xxs
	}
	return merged
}

func mergeRequestOptions(parent, child RequestOptions) RequestOptions {
	merged := child
	if merged.CleanupTimeout == 0 {
		merged.CleanupTimeout = parent.CleanupTimeout
	}
	if merged.RequestInterceptor == nil {
		merged.RequestInterceptor = parent.RequestInterceptor
	}
	if merged.ResponseInterceptor == nil {
		merged.ResponseInterceptor = parent.ResponseInterceptor
	}
	merged.Metadata = mergeAnyMap(parent.Metadata, child.Metadata)
	merged.Defaults = Defaults{
		BaseURL: child.Defaults.BaseURL,
		Headers: mergeStringMap(parent.Defaults.Headers, child.Defaults.Headers),
		Params:  mergeStringMap(parent.Defaults.Params, child.Defaults.Params),
	}
	if merged.Defaults.BaseURL == "" {
		merged.Defaults.BaseURL = parent.Defaults.BaseURL
	}
	return merged
}
