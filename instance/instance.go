// Package instance implements the process-level façade:
// Instance (the fleet's "RequestHandler") loads the client set, runs leader
// election for each client, routes pub/sub messages to the right Client,
// and exposes the public handleRequest/destroyClient/regenerateClients/
// stats operations. It is grounded on the same cyclic-reference-to-
// message-passing collapse this design calls out: the Client owns the
// pipeline, and the Instance is a router with a client registry.
package instance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vivo-us/request-handler/auth"
	"github.com/vivo-us/request-handler/client"
	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/freq"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rerrors"
	"github.com/vivo-us/request-handler/internal/rlog"
	"github.com/vivo-us/request-handler/quotas"
)

// Status mirrors Instance.status.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusStarted  Status = "started"
)

const (
	instanceHeartbeatInterval = time.Second
	instanceHeartbeatTTL      = 3 * time.Second
	ownershipCoalesceWindow   = 50 * time.Millisecond
)

// ClientGenerator is the non-goal external collaborator: a
// pure function returning the client specs owned by one name in the
// constructor's clientGenerators map.
type ClientGenerator func() []client.Spec

// Options is the Instance constructor's opts
type Options struct {
	Key                 []byte // encryption key for the OAuth2 token cache
	Redis               redistransport.Client
	ClientGenerators    map[string]ClientGenerator
	DefaultClientOptions client.Spec
	Priority            int // default 1
	Logger              rlog.Logger
	ClockSrc            clock.TimeSource
	HTTP                client.HTTPDoer
}

// Instance is the process-level façade ("RequestHandler").
type Instance struct {
	id       string
	priority int
	logger   rlog.Logger
	transport redistransport.Client
	clockSrc clock.TimeSource
	enc      auth.Encryptor
	http     client.HTTPDoer

	generators           map[string]ClientGenerator
	defaultClientOptions client.Spec

	mu                sync.RWMutex
	status            Status
	registeredClients map[string]bool
	clients           map[string]*client.Client

	peersMu sync.Mutex
	peers   map[string]*peer

	heartbeatTicker clock.Ticker
	sub             redistransport.Subscription
	stopCh          chan struct{}

	ownershipCoalesce *freq.LimitedFreq
}

// peer is one entry of the in-memory ownership table .
type peer struct {
	id                string
	priority          int
	registeredClients map[string]bool
	lastHeartbeat     time.Time
}

// New constructs an Instance. It does not contact Redis until Start.
func New(opts Options) (*Instance, error) {
	if opts.Redis == nil {
		return nil, rerrors.New("instance: redis transport is required")
	}
	priority := opts.Priority
	if priority == 0 {
		priority = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = rlog.NewNop()
	}
	clockSrc := opts.ClockSrc
	if clockSrc == nil {
		clockSrc = clock.NewRealTimeSource()
	}
	httpDoer := opts.HTTP
	if httpDoer == nil {
		httpDoer = client.NewDefaultHTTPDoer(30 * time.Second)
	}

	var enc auth.Encryptor
	if len(opts.Key) > 0 {
		var err error
		enc, err = auth.NewAESGCMEncryptor(opts.Key)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	inst := &Instance{
		id:                id,
		priority:          priority,
		logger:            logger.With(zap.String("instanceId", id)),
		transport:         opts.Redis,
		clockSrc:          clockSrc,
		enc:               enc,
		http:              httpDoer,
		generators:           opts.ClientGenerators,
		defaultClientOptions: opts.DefaultClientOptions,
		status:            StatusStopped,
		registeredClients: make(map[string]bool),
		clients:           make(map[string]*client.Client),
		peers:             make(map[string]*peer),
		stopCh:            make(chan struct{}),
	}
	inst.ownershipCoalesce = freq.NewLimitedFrequencyCallback(clockSrc, ownershipCoalesceWindow, inst.recomputeOwnership)
	return inst, nil
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// resolver returns a quotas.Resolver bound to this instance's client
// registry, used to build sharedLimit policies.
func (i *Instance) resolver() quotas.Resolver {
	return func(name string) (quotas.Limiter, bool) {
		i.mu.RLock()
		c, ok := i.clients[name]
		i.mu.RUnlock()
		if !ok {
			return nil, false
		}
		return c.Limiter(), true
	}
}

func (i *Instance) clientByName(name string) (*client.Client, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.clients[name]
	return c, ok
}

func (i *Instance) withContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
