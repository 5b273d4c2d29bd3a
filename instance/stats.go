package instance

import (
	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/rerrors"
)

// GetClientStats is the public operation
func (i *Instance) GetClientStats(name string) (client.Stats, error) {
	c, ok := i.clientByName(name)
	if !ok {
		return client.Stats{}, rerrors.UnknownClient(name)
	}
	return c.Stats(), nil
}

// ClientInfo is one entry of ListClients, a lightweight introspection
// operation: the registered client names
// plus this instance's current role for each, without the full Stats cost
// of GetClientStats.
type ClientInfo struct {
	Name string      `json:"name"`
	Role client.Role `json:"role"`
}

// ListClients returns every client this instance has registered, along
// with its locally-held role. Useful for operational dashboards that would
// otherwise have to call GetClientStats once per known name.
func (i *Instance) ListClients() []ClientInfo {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]ClientInfo, 0, len(i.clients))
	for name, c := range i.clients {
		out = append(out, ClientInfo{Name: name, Role: c.Role()})
	}
	return out
}
