package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

type basicAuth struct{ spec Spec }

func (b *basicAuth) Headers(ctx context.Context) (map[string]string, error) {
	header := b.spec.HeaderName
	if header == "" {
		header = "Authorization"
	}
	prefix := b.spec.Prefix
	if prefix == "" {
		prefix = "Basic"
	}
	raw := base64.StdEncoding.EncodeToString([]byte(b.spec.Username + ":" + b.spec.Password))
	return map[string]string{header: headerValue(prefix, raw, b.spec.ExcludePrefix)}, nil
}

type tokenAuth struct{ spec Spec }

func (t *tokenAuth) Headers(ctx context.Context) (map[string]string, error) {
	header := t.spec.HeaderName
	if header == "" {
		header = "Authorization"
	}
	prefix := t.spec.Prefix
	if prefix == "" {
		prefix = "Bearer"
	}
	value := strings.TrimSpace(t.spec.Token)
	if t.spec.Base64EncodeToken {
		value = base64.StdEncoding.EncodeToString([]byte(value))
	}
	return map[string]string{header: headerValue(prefix, value, t.spec.ExcludePrefix)}, nil
}

func headerValue(prefix, value string, excludePrefix bool) string {
	if excludePrefix || prefix == "" {
		return value
	}
	return fmt.Sprintf("%s %s", prefix, value)
}
