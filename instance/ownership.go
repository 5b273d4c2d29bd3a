package instance

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rerrors"
)

// handlePeerEvent applies an instanceStarted/instanceUpdated/
// instanceHeartbeat message to the in-memory ownership table 
// and schedules an ownership recompute.
func (i *Instance) handlePeerEvent(msg instanceEventMsg) {
	if msg.Instance.ID == i.id {
		return
	}
	registered := make(map[string]bool, len(msg.Instance.RegisteredClients))
	for _, name := range msg.Instance.RegisteredClients {
		registered[name] = true
	}

	i.peersMu.Lock()
	p, ok := i.peers[msg.Instance.ID]
	if !ok {
		p = &peer{id: msg.Instance.ID}
		i.peers[msg.Instance.ID] = p
	}
	p.priority = msg.Instance.Priority
	p.registeredClients = registered
	p.lastHeartbeat = i.clockSrc.Now()
	i.peersMu.Unlock()

	i.ownershipCoalesce.Handle()
}

// handlePeerStopped removes a peer immediately (instanceStopped
// is a trigger for ownership recomputation).
func (i *Instance) handlePeerStopped(msg instanceEventMsg) {
	i.peersMu.Lock()
	delete(i.peers, msg.Instance.ID)
	i.peersMu.Unlock()
	i.ownershipCoalesce.Handle()
}

// expirePeers drops peers whose heartbeat has lapsed past the 3s TTL (spec
// §4.2: "on expiry, remove the peer from the in-memory table and re-run
// ownership"). Called from the instance's own heartbeat cadence so there is
// no separate per-peer timer to manage.
func (i *Instance) expirePeers() {
	now := i.clockSrc.Now()
	i.peersMu.Lock()
	var expired bool
	for id, p := range i.peers {
		if now.Sub(p.lastHeartbeat) > instanceHeartbeatTTL {
			delete(i.peers, id)
			expired = true
		}
	}
	i.peersMu.Unlock()
	if expired {
		i.ownershipCoalesce.Handle()
	}
}

// orderedCandidate is one entry in the sort this ordering is defined as: priority
// descending, then id lexicographically greater wins.
type orderedCandidate struct {
	id                string
	priority          int
	registeredClients map[string]bool
}

// ordering sorts candidates ordering function: priority
// descending, ties broken by the lexicographically greater id winning
// (i.e. descending id order within equal priority).
func ordering(candidates []orderedCandidate) {
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].priority != candidates[b].priority {
			return candidates[a].priority > candidates[b].priority
		}
		return candidates[a].id > candidates[b].id
	})
}

// recomputeOwnership implements: for each registered client,
// determine whether any instance ordered ahead of this one also registers
// it; if so this instance is worker, else controller. Role changes are
// applied idempotently, and if anything changed, the instance re-persists
// its registration and publishes instanceUpdated.
func (i *Instance) recomputeOwnership() {
	i.peersMu.Lock()
	candidates := make([]orderedCandidate, 0, len(i.peers)+1)
	for _, p := range i.peers {
		candidates = append(candidates, orderedCandidate{id: p.id, priority: p.priority, registeredClients: p.registeredClients})
	}
	i.peersMu.Unlock()

	i.mu.RLock()
	self := orderedCandidate{id: i.id, priority: i.priority, registeredClients: i.registeredClients}
	names := maps.Keys(i.registeredClients)
	i.mu.RUnlock()
	candidates = append(candidates, self)
	ordering(candidates)

	selfIndex := -1
	for idx, c := range candidates {
		if c.id == i.id {
			selfIndex = idx
			break
		}
	}

	changed := false
	for _, name := range names {
		isController := true
		for idx := 0; idx < selfIndex; idx++ {
			if candidates[idx].registeredClients[name] {
				isController = false
				break
			}
		}
		role := client.RoleWorker
		if isController {
			role = client.RoleController
		}

		c, ok := i.clientByName(name)
		if !ok {
			continue
		}
		if c.Role() != role {
			changed = true
		}
		c.SetRole(role)
	}

	if changed {
		ctx := context.Background()
		if err := i.persistRegistration(ctx); err != nil {
			i.logger.Error("persisting registration after ownership change", zap.Error(err))
		}
		i.publishInstanceEvent(ctx, redistransport.ChanInstanceUpdated)
	}
}

// staleInstanceCheck implements StaleInstance recovery: an id
// present in :instances with no corresponding :instance:<id> key is
// dropped from the set and ownership recomputes.
func (i *Instance) staleInstanceCheck(ctx context.Context, ids []string) {
	for _, id := range ids {
		if id == i.id {
			continue
		}
		_, found, err := i.transport.Get(ctx, redistransport.KeyInstance(id))
		if err != nil || found {
			continue
		}
		i.logger.Warn("removing stale instance registration", zap.Error(rerrors.StaleInstance(id)))
		_ = i.transport.SRem(ctx, redistransport.KeyInstances, id)
		i.peersMu.Lock()
		delete(i.peers, id)
		i.peersMu.Unlock()
		i.ownershipCoalesce.Handle()
	}
}
