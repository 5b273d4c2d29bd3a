package instance

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rerrors"
)

const defaultClientName = "default"

// loadAllGenerators runs every registered ClientGenerator and creates the
// resulting clients ("created during instance bootstrap from a
// ClientGenerator"), then guarantees the always-present "default" client
// (clientName "default" always exists).
func (i *Instance) loadAllGenerators() error {
	for name := range i.generators {
		if err := i.loadGenerator(name); err != nil {
			return err
		}
	}
	if _, ok := i.clientByName(defaultClientName); !ok {
		if err := i.createClient(client.Spec{Name: defaultClientName}); err != nil {
			return err
		}
	}
	return nil
}

// loadGenerator invokes one named generator and flattens+creates every
// resulting spec (SubClient composition happens here, at load
// time).
func (i *Instance) loadGenerator(name string) error {
	gen, ok := i.generators[name]
	if !ok {
		return nil
	}
	raw := gen()
	withDefaults := make([]client.Spec, len(raw))
	for idx, s := range raw {
		withDefaults[idx] = client.ApplyDefaults(i.defaultClientOptions, s)
	}
	specs := client.Flatten(withDefaults)
	for _, spec := range specs {
		if err := i.createClient(spec); err != nil {
			// DuplicateClient: surfaced, halting this generator pass.
			return err
		}
	}
	return nil
}

// createClient registers one flattened client spec locally.
func (i *Instance) createClient(spec client.Spec) error {
	i.mu.Lock()
	if _, exists := i.clients[spec.Name]; exists {
		i.mu.Unlock()
		return rerrors.DuplicateClient(spec.Name)
	}
	i.mu.Unlock()

	deps := client.Deps{
		Transport: i.transport,
		HTTP:      i.http,
		ClockSrc:  i.clockSrc,
		Logger:    i.logger,
		Encryptor: i.enc,
	}
	c, err := client.NewClient(spec, deps, i.resolver())
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.clients[spec.Name] = c
	i.registeredClients[spec.Name] = true
	i.mu.Unlock()

	if i.Status() == StatusStarted {
		c.StartHealthCheck()
	}
	i.ownershipCoalesce.Handle()
	return nil
}

func (i *Instance) removeClient(name string) {
	i.mu.Lock()
	c, ok := i.clients[name]
	if ok {
		delete(i.clients, name)
		delete(i.registeredClients, name)
	}
	i.mu.Unlock()
	if ok {
		c.Stop()
	}
}

// RegenerateClients is the public, fleet-wide operation: it
// broadcasts regenerateClients so every instance (including this one, since
// it is also a subscriber) reloads the named generators, or all of them if
// names is empty.
func (i *Instance) RegenerateClients(ctx context.Context, names ...string) error {
	payload, err := json.Marshal(regenerateClientsMsg{Names: names})
	if err != nil {
		return err
	}
	return i.transport.Publish(i.withContext(ctx), redistransport.ChanRegenerateClients, payload)
}

func (i *Instance) applyRegenerateClients(names []string) {
	targets := names
	if len(targets) == 0 {
		targets = make([]string, 0, len(i.generators))
		for name := range i.generators {
			targets = append(targets, name)
		}
	}
	for _, name := range targets {
		i.removeClientsByGenerator(name)
		if err := i.loadGenerator(name); err != nil {
			i.logger.Error("regenerating clients", zap.String("generator", name), zap.Error(err))
		}
	}
}

// removeClientsByGenerator drops every client generator name produces: the
// flattened names of its current output (top-level specs and their
// "parent:child" subclients).
func (i *Instance) removeClientsByGenerator(name string) {
	gen, ok := i.generators[name]
	if !ok {
		return
	}
	for _, spec := range client.Flatten(gen()) {
		i.removeClient(spec.Name)
	}
}

// DestroyClient is the public, fleet-wide removal operation
func (i *Instance) DestroyClient(ctx context.Context, name string) error {
	payload, err := json.Marshal(destroyClientMsg{Name: name})
	if err != nil {
		return err
	}
	return i.transport.Publish(i.withContext(ctx), redistransport.ChanDestroyClient, payload)
}

func (i *Instance) applyDestroyClient(name string) {
	i.removeClient(name)
}

// HandleRequest is the public operation: it looks up the named
// client (UnknownClient if absent) and delegates to the Client's
// pipeline. Calling it before Start recovers by starting the instance
// internally first (NotStarted).
func (i *Instance) HandleRequest(ctx context.Context, in client.HandleRequestInput) (*client.HTTPResponse, error) {
	ctx = i.withContext(ctx)
	if err := i.ensureStarted(ctx); err != nil {
		return nil, err
	}
	c, ok := i.clientByName(in.ClientName)
	if !ok {
		return nil, rerrors.UnknownClient(in.ClientName)
	}
	return c.HandleRequest(ctx, in)
}
