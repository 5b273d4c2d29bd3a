package client

import (
	"encoding/json"

	"github.com/vivo-us/request-handler/quotas"
	"github.com/vivo-us/request-handler/record"
)

// Wire payloads for the per-client pub/sub channels ("payloads
// are JSON of the value objects in §3"). Every payload carries ClientName so
// the Instance router ("routes pub/sub messages") can pick the right Client
// with ClientNameOf before that Client decodes the full payload.

type requestAddedMsg struct {
	ClientName string         `json:"clientName"`
	Record     *record.Record `json:"record"`
}

type requestHeartbeatMsg struct {
	ClientName string `json:"clientName"`
	RequestID  string `json:"requestId"`
}

type requestReadyMsg struct {
	ClientName string         `json:"clientName"`
	Record     *record.Record `json:"record"`
}

type requestDoneMsg struct {
	ClientName    string         `json:"clientName"`
	Record        *record.Record `json:"record"`
	Success       bool           `json:"success"`
	WaitTimeMs    int64          `json:"waitTimeMs,omitempty"`
	IsRateLimited bool           `json:"isRateLimited,omitempty"`
}

type clientTokensUpdatedMsg struct {
	ClientName string          `json:"clientName"`
	Snapshot   quotas.Snapshot `json:"snapshot"`
}

type rateLimitUpdatedMsg struct {
	ClientName string      `json:"clientName"`
	RateLimit  quotas.Spec `json:"rateLimit"`
}

// ClientNameOf peeks the clientName field out of any of this package's
// wire payloads without fully decoding it, so the Instance router can
// dispatch without knowing the channel's specific shape ahead of time.
func ClientNameOf(payload []byte) (string, bool) {
	var envelope struct {
		ClientName string `json:"clientName"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	return envelope.ClientName, envelope.ClientName != ""
}
