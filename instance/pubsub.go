package instance

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/redistransport"
)

// onMessage is the single entry point for every subscribed channel (spec
// §2: Instance "routes pub/sub messages"). Instance-lifecycle channels are
// handled here directly; every other channel carries a clientName and is
// forwarded to that Client's matching handler.
func (i *Instance) onMessage(channel string, payload []byte) {
	switch channel {
	case redistransport.ChanInstanceStarted, redistransport.ChanInstanceHeartbeat:
		var msg instanceEventMsg
		if err := json.Unmarshal(payload, &msg); err == nil {
			i.handlePeerEvent(msg)
		}
	case redistransport.ChanInstanceUpdated:
		var msg instanceEventMsg
		if err := json.Unmarshal(payload, &msg); err == nil {
			i.handlePeerEvent(msg)
		}
	case redistransport.ChanInstanceStopped:
		var msg instanceEventMsg
		if err := json.Unmarshal(payload, &msg); err == nil {
			i.handlePeerStopped(msg)
		}
	case redistransport.ChanRegenerateClients:
		var msg regenerateClientsMsg
		if err := json.Unmarshal(payload, &msg); err == nil {
			i.applyRegenerateClients(msg.Names)
		}
	case redistransport.ChanDestroyClient:
		var msg destroyClientMsg
		if err := json.Unmarshal(payload, &msg); err == nil {
			i.applyDestroyClient(msg.Name)
		}
	case redistransport.ChanRequestAdded:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnRequestAdded(payload) })
	case redistransport.ChanRequestHeartbeat:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnRequestHeartbeat(payload) })
	case redistransport.ChanRequestReady:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnRequestReady(payload) })
	case redistransport.ChanRequestDone:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnRequestDone(payload) })
	case redistransport.ChanClientTokensUpdated:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnClientTokensUpdated(payload) })
	case redistransport.ChanRateLimitUpdated:
		i.dispatchToClient(payload, func(c *client.Client) { c.OnRateLimitUpdated(payload, i.resolver()) })
	default:
		i.logger.Debug("unhandled channel", zap.String("channel", channel))
	}
}

func (i *Instance) dispatchToClient(payload []byte, fn func(*client.Client)) {
	name, ok := client.ClientNameOf(payload)
	if !ok {
		return
	}
	c, ok := i.clientByName(name)
	if !ok {
		return
	}
	fn(c)
}
