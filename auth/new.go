package auth

import (
	"fmt"

	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/redistransport"
)

// New builds the Authenticator named by spec.Type. redis, enc, and http are
// only consulted for the OAuth2 variants.
func New(spec Spec, clientName string, redis redistransport.Client, enc Encryptor, http HTTPDoer, ts clock.TimeSource) (Authenticator, error) {
	switch spec.Type {
	case TypeBasic:
		return &basicAuth{spec: spec}, nil
	case TypeToken:
		return &tokenAuth{spec: spec}, nil
	case TypeOAuth2ClientCredentials, TypeOAuth2GrantType:
		if redis == nil || enc == nil || http == nil {
			return nil, fmt.Errorf("auth: oauth2 requires redis, an encryptor, and an http doer")
		}
		return &oauth2Auth{spec: spec, clientName: clientName, redis: redis, enc: enc, http: http, clockSrc: ts}, nil
	default:
		return nil, fmt.Errorf("auth: unknown authentication type %q", spec.Type)
	}
}
