// Package auth implements the four Authenticator variants:
// basic, static token, and two OAuth2 flavors backed by a Redis-cached,
// encrypted access token. Encryption itself and the HTTP transport used for
// the refresh call are explicit external collaborators (
// non-goals); this package defines the narrow interfaces at that boundary
// (Encryptor, HTTPDoer) and ships one minimal default for each so the
// module runs standalone.
package auth

import (
	"context"
)

// Type identifies an authentication variant (authentication.type on the
// wire).
type Type string

const (
	TypeBasic                  Type = "basic"
	TypeToken                  Type = "token"
	TypeOAuth2ClientCredentials Type = "oauth2ClientCredentials"
	TypeOAuth2GrantType         Type = "oauth2GrantType"
)

// DataLocation is where OAuth2 refresh parameters are placed in the refresh
// request .
type DataLocation string

const (
	DataLocationJSONBody         DataLocation = "jsonBody"
	DataLocationURLQuery         DataLocation = "urlQuery"
	DataLocationURLEncodedForm   DataLocation = "urlEncodedForm"
)

// Spec is the wire/config shape of a client's authentication field.
type Spec struct {
	Type Type `json:"type"`

	HeaderName    string `json:"headerName,omitempty"` // default "Authorization"
	Prefix        string `json:"prefix,omitempty"`     // default varies by type
	ExcludePrefix bool   `json:"excludePrefix,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// token
	Token          string `json:"token,omitempty"`
	Base64EncodeToken bool `json:"base64EncodeToken,omitempty"`

	// oauth2ClientCredentials / oauth2GrantType
	URL                       string       `json:"url,omitempty"`
	DataLocation              DataLocation `json:"dataLocation,omitempty"`
	ClientID                  string       `json:"clientId,omitempty"`
	ClientSecret              string       `json:"clientSecret,omitempty"`
	RefreshToken              string       `json:"refreshToken,omitempty"`
	UseBasicAuthForClientCreds bool        `json:"useBasicAuthForClientCreds,omitempty"`
	// ClientRedisKey namespaces the Redis-cached token; defaults to the
	// owning client's name so subclients sharing a parent's authentication
	// (SubClient composition) also share its cached token.
	ClientRedisKey string `json:"clientRedisKey,omitempty"`
}

// Encryptor is the boundary for credential-at-rest encryption (an external
// collaborator: "credential encryption primitives...described only at their
// interface boundary"). Ciphertexts round-trip through Redis as strings.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Headers returns the header(s) to merge into an outbound request. The
// returned map always has exactly one entry for the non-OAuth2 variants;
// OAuth2 variants may trigger a cache read or refresh.
type Authenticator interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// HTTPDoer is the minimal HTTP surface the OAuth2 refresh flow needs. The
// HTTP transport library itself is a non-goal external collaborator (spec
// §1); this is the seam an embedding application's real client satisfies.
type HTTPDoer interface {
	Do(req *Request) (*Response, error)
}

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Body       []byte
}
