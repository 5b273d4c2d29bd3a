package redistransport

// Channel names, the authoritative list
const (
	ChanInstanceStarted     = "instanceStarted"
	ChanInstanceUpdated     = "instanceUpdated"
	ChanInstanceHeartbeat   = "instanceHeartbeat"
	ChanInstanceStopped     = "instanceStopped"
	ChanRegenerateClients   = "regenerateClients"
	ChanDestroyClient       = "destroyClient"
	ChanClientTokensUpdated = "clientTokensUpdated"
	ChanRequestAdded        = "requestAdded"
	ChanRequestHeartbeat    = "requestHeartbeat"
	ChanRequestReady        = "requestReady"
	ChanRequestDone         = "requestDone"
	ChanRateLimitUpdated    = "rateLimitUpdated"
)

// AllChannels is the full subscription list an Instance opens at startup.
var AllChannels = []string{
	ChanInstanceStarted,
	ChanInstanceUpdated,
	ChanInstanceHeartbeat,
	ChanInstanceStopped,
	ChanRegenerateClients,
	ChanDestroyClient,
	ChanClientTokensUpdated,
	ChanRequestAdded,
	ChanRequestHeartbeat,
	ChanRequestReady,
	ChanRequestDone,
	ChanRateLimitUpdated,
}

// Key helpers, key layout.
const (
	KeyInstances = "instances" // set
)

// KeyInstance returns the per-instance metadata key (JSON, TTL 3s).
func KeyInstance(instanceID string) string { return "instance:" + instanceID }

// KeyOAuth2 returns the per-client OAuth2 token cache key (hash, encrypted
// fields).
func KeyOAuth2(clientName string) string { return clientName + ":oauth2" }
