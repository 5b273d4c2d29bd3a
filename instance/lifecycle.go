package instance

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/redistransport"
)

// Start is bootstrap sequence: subscribe to every channel, load the
// client generators, persist metadata to :instance:<id>, add the id to
// :instances, publish instanceStarted, then begin the 1s heartbeat/3s-TTL
// cadence.
// Idempotent: calling Start twice while already started is a no-op.
func (i *Instance) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.status != StatusStopped {
		i.mu.Unlock()
		return nil
	}
	i.status = StatusStarting
	i.mu.Unlock()

	ctx = i.withContext(ctx)

	sub, err := i.transport.Subscribe(ctx, redistransport.AllChannels, i.onMessage)
	if err != nil {
		i.mu.Lock()
		i.status = StatusStopped
		i.mu.Unlock()
		return err
	}
	i.sub = sub

	if err := i.loadAllGenerators(); err != nil {
		i.logger.Error("loading client generators", zap.Error(err))
	}

	if err := i.persistRegistration(ctx); err != nil {
		i.logger.Error("persisting instance registration", zap.Error(err))
	}
	i.publishInstanceEvent(ctx, redistransport.ChanInstanceStarted)

	i.heartbeatTicker = i.clockSrc.NewTicker(instanceHeartbeatInterval)
	go i.heartbeatLoop()

	for _, c := range i.snapshotClients() {
		c.StartHealthCheck()
	}

	i.mu.Lock()
	i.status = StatusStarted
	i.mu.Unlock()

	i.ownershipCoalesce.Handle()
	return nil
}

// Stop is teardown: clear all intervals, publish
// instanceStopped, remove this id from the Redis instance set. In-flight
// requests are not force-aborted.
func (i *Instance) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.status == StatusStopped {
		i.mu.Unlock()
		return nil
	}
	i.status = StatusStopped
	i.mu.Unlock()

	ctx = i.withContext(ctx)
	close(i.stopCh)
	i.ownershipCoalesce.Stop()

	if i.heartbeatTicker != nil {
		i.heartbeatTicker.Stop()
	}
	if i.sub != nil {
		_ = i.sub.Close()
	}

	for _, c := range i.snapshotClients() {
		c.Stop()
	}

	i.publishInstanceEvent(ctx, redistransport.ChanInstanceStopped)
	_ = i.transport.Del(ctx, redistransport.KeyInstance(i.id))
	_ = i.transport.SRem(ctx, redistransport.KeyInstances, i.id)
	return nil
}

func (i *Instance) heartbeatLoop() {
	for {
		select {
		case <-i.heartbeatTicker.Chan():
			ctx := context.Background()
			if err := i.transport.Expire(ctx, redistransport.KeyInstance(i.id), instanceHeartbeatTTL); err != nil {
				i.logger.Warn("refreshing instance TTL", zap.Error(err))
			}
			i.publishInstanceEvent(ctx, redistransport.ChanInstanceHeartbeat)
			i.expirePeers()
		case <-i.stopCh:
			return
		}
	}
}

func (i *Instance) persistRegistration(ctx context.Context) error {
	rec := i.currentRecord()
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return i.transport.SetAndTrack(ctx, redistransport.KeyInstance(i.id), payload, instanceHeartbeatTTL, redistransport.KeyInstances, i.id)
}

func (i *Instance) currentRecord() instanceRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return instanceRecord{ID: i.id, Priority: i.priority, RegisteredClients: maps.Keys(i.registeredClients)}
}

func (i *Instance) publishInstanceEvent(ctx context.Context, channel string) {
	payload, _ := json.Marshal(instanceEventMsg{Instance: i.currentRecord()})
	if err := i.transport.Publish(ctx, channel, payload); err != nil {
		i.logger.Error("publish instance event", zap.Error(err), zap.String("channel", channel))
	}
}

func (i *Instance) snapshotClients() []*client.Client {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]*client.Client, 0, len(i.clients))
	for _, c := range i.clients {
		out = append(out, c)
	}
	return out
}

// ensureStarted implements NotStarted recovery: "await start
// internally, then proceed." Since Start is idempotent and synchronous here,
// this simply starts the instance if it has not been already.
func (i *Instance) ensureStarted(ctx context.Context) error {
	if i.Status() == StatusStarted {
		return nil
	}
	return i.Start(ctx)
}
