package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rerrors"
)

// expiryLeeway is how far before the nominal expiry a cached token is
// considered stale ("OAuth2 token considered expired <= 5 min
// before nominal expiry").
const expiryLeeway = 5 * time.Minute

type oauth2Auth struct {
	spec       Spec
	clientName string
	redis      redistransport.Client
	enc        Encryptor
	http       HTTPDoer
	clockSrc   clock.TimeSource
}

type cachedToken struct {
	AccessToken  string `json:"accessToken"`  // encrypted
	RefreshToken string `json:"refreshToken"` // encrypted, optional
	ExpiresAt    int64  `json:"expiresAt"`     // unix ms
}

func (o *oauth2Auth) cacheKey() string {
	key := o.spec.ClientRedisKey
	if key == "" {
		key = o.clientName
	}
	return redistransport.KeyOAuth2(key)
}

func (o *oauth2Auth) Headers(ctx context.Context) (map[string]string, error) {
	token, err := o.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	header := o.spec.HeaderName
	if header == "" {
		header = "Authorization"
	}
	prefix := o.spec.Prefix
	if prefix == "" {
		prefix = "Bearer"
	}
	return map[string]string{header: headerValue(prefix, token, o.spec.ExcludePrefix)}, nil
}

func (o *oauth2Auth) currentToken(ctx context.Context) (string, error) {
	if cached, ok, err := o.readCache(ctx); err != nil {
		return "", err
	} else if ok {
		return cached, nil
	}
	return o.refresh(ctx)
}

func (o *oauth2Auth) readCache(ctx context.Context) (string, bool, error) {
	fields, err := o.redis.HGetAll(ctx, o.cacheKey())
	if err != nil {
		return "", false, fmt.Errorf("auth: oauth2 cache read: %w", err)
	}
	if len(fields) == 0 {
		return "", false, nil
	}
	expiresAt, err := strconv.ParseInt(fields["expiresAt"], 10, 64)
	if err != nil {
		return "", false, nil // malformed cache entry, treat as absent
	}
	if o.clockSrc.Now().Add(expiryLeeway).After(time.UnixMilli(expiresAt)) {
		return "", false, nil // within 5 minutes of expiry, or already expired
	}
	plain, err := o.enc.Decrypt(fields["accessToken"])
	if err != nil {
		return "", false, fmt.Errorf("auth: oauth2 cache decrypt: %w", err)
	}
	return plain, true, nil
}

func (o *oauth2Auth) refresh(ctx context.Context) (string, error) {
	params := map[string]string{
		"clientId":     o.spec.ClientID,
		"clientSecret": o.spec.ClientSecret,
		"refreshToken": o.spec.RefreshToken,
	}

	req := &Request{Method: "POST", URL: o.spec.URL, Headers: map[string]string{}}
	switch o.spec.DataLocation {
	case DataLocationURLQuery:
		u, err := url.Parse(o.spec.URL)
		if err != nil {
			return "", rerrors.AuthRefresh(o.clientName, err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		req.URL = u.String()
	case DataLocationURLEncodedForm:
		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}
		req.Body = []byte(form.Encode())
		req.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	default: // DataLocationJSONBody
		body, err := json.Marshal(params)
		if err != nil {
			return "", rerrors.AuthRefresh(o.clientName, err)
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	if o.spec.UseBasicAuthForClientCreds {
		basic := &basicAuth{spec: Spec{Username: o.spec.ClientID, Password: o.spec.ClientSecret}}
		headers, _ := basic.Headers(ctx)
		for k, v := range headers {
			req.Headers[k] = v
		}
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return "", rerrors.AuthRefresh(o.clientName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", rerrors.AuthRefresh(o.clientName, fmt.Errorf("refresh returned status %d", resp.StatusCode))
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", rerrors.AuthRefresh(o.clientName, fmt.Errorf("decode refresh response: %w", err))
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", rerrors.AuthRefresh(o.clientName, fmt.Errorf("refresh response missing access_token"))
	}

	if err := o.persist(ctx, parsed.AccessToken, parsed.RefreshToken, parsed.ExpiresIn); err != nil {
		return "", rerrors.AuthRefresh(o.clientName, err)
	}
	return parsed.AccessToken, nil
}

func (o *oauth2Auth) persist(ctx context.Context, accessToken, refreshToken string, expiresInSeconds int64) error {
	encAccess, err := o.enc.Encrypt(strings.TrimSpace(accessToken))
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	fields := map[string]string{
		"accessToken": encAccess,
		"expiresAt":   strconv.FormatInt(o.clockSrc.Now().Add(time.Duration(expiresInSeconds)*time.Second).UnixMilli(), 10),
	}
	if strings.TrimSpace(refreshToken) != "" {
		encRefresh, err := o.enc.Encrypt(strings.TrimSpace(refreshToken))
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		fields["refreshToken"] = encRefresh
	}
	return o.redis.HSet(ctx, o.cacheKey(), fields)
}
