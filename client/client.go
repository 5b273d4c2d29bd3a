package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vivo-us/request-handler/auth"
	"github.com/vivo-us/request-handler/internal/clock"
	"github.com/vivo-us/request-handler/internal/redistransport"
	"github.com/vivo-us/request-handler/internal/rlog"
	"github.com/vivo-us/request-handler/quotas"
	"github.com/vivo-us/request-handler/record"
)

// Role mirrors Client.role: controller or worker. A freshly
// created Client always starts as worker; the owning Instance assigns the
// controller role via SetRole once ownership  resolves.
type Role string

const (
	RoleWorker     Role = "worker"
	RoleController Role = "controller"
)

const (
	requestHeartbeatInterval = time.Second
	requestHeartbeatTTL      = 3 * time.Second
	defaultThawRequestCount  = 3
)

// Client is the per-named-target coordinator: it holds the
// ordered request map, runs the admission loop when it is the controller,
// drives heartbeats, applies interceptors, executes HTTP calls, retries,
// and manages freeze/thaw. One Client value exists per instance per
// client name; every instance's Client stays in sync on rateLimitUpdated
// broadcasts even though only the controller's copy is ever exercised by
// an admission loop ("workers never admit locally").
type Client struct {
	name      string
	logger    rlog.Logger
	transport redistransport.Client
	http      HTTPDoer
	authn     auth.Authenticator
	clockSrc  clock.TimeSource

	mu   sync.Mutex
	spec Spec

	limiterMu sync.RWMutex
	limiter   *quotas.Tracked

	role Role

	requests        *requestMap
	bus             *eventBus
	announceLimiter *rate.Limiter

	loopMu    sync.Mutex
	loopToken string

	freezeMu         sync.Mutex
	frozen           bool
	freezeTimer      clock.Timer
	thawRequestCount int
	thawRequestID    string

	stopCh  chan struct{}
	stopped bool
}

// Deps bundles the external collaborators a Client needs, all of them
// explicit non-goal boundaries 
type Deps struct {
	Transport redistransport.Client
	HTTP      HTTPDoer
	ClockSrc  clock.TimeSource
	Logger    rlog.Logger
	Encryptor auth.Encryptor
}

// NewClient builds a Client from its effective (post-Flatten) spec. resolve
// is threaded through to quotas.New for the sharedLimit policy variant.
func NewClient(spec Spec, deps Deps, resolve quotas.Resolver) (*Client, error) {
	spec = spec.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = rlog.NewNop()
	}
	logger = logger.With(zap.String("clientName", spec.Name))

	limiter, err := quotas.New(spec.RateLimit, deps.ClockSrc, resolve)
	if err != nil {
		return nil, err
	}

	var authn auth.Authenticator
	if spec.Authentication != nil {
		authn, err = auth.New(*spec.Authentication, spec.Name, deps.Transport, deps.Encryptor, &authHTTPAdapter{doer: deps.HTTP}, deps.ClockSrc)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		name:      spec.Name,
		logger:    logger,
		transport: deps.Transport,
		http:      deps.HTTP,
		authn:     authn,
		clockSrc:  deps.ClockSrc,
		spec:      spec,
		limiter:   quotas.NewTracked(limiter),
		role:      RoleWorker,
		requests:        newRequestMap(),
		bus:             newEventBus(),
		announceLimiter: newAnnounceLimiter(),
		stopCh:          make(chan struct{}),
	}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) baseLimiter() quotas.Limiter {
	c.limiterMu.RLock()
	defer c.limiterMu.RUnlock()
	return c.limiter.Unwrap()
}

func (c *Client) Limiter() *quotas.Tracked {
	c.limiterMu.RLock()
	defer c.limiterMu.RUnlock()
	return c.limiter
}

func (c *Client) effectiveSpec() Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spec
}

// Role reports the current role assigned by the owning Instance.
func (c *Client) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// SetRole is called by the Instance whenever ownership recomputation (spec
// §4.2) changes this client's role. Transitioning into controller kicks the
// admission loop if there is already work queued; transitioning out of it
// is a no-op, since an in-flight loop iteration will simply find itself no
// longer controller and stop at its next boundary (see runLoop).
func (c *Client) SetRole(role Role) {
	c.mu.Lock()
	changed := c.role != role
	c.role = role
	c.mu.Unlock()
	if changed && role == RoleController {
		c.tryStartLoop()
	}
}

// Stop releases the background ticker owned by a requestLimit policy and
// cancels any pending freeze timer (destroyClient/stop "cancels
// heartbeat timers and freeze timers").
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.stopCh)

	if stoppable, ok := c.baseLimiter().(quotas.Stoppable); ok {
		stoppable.Stop()
	}
	c.freezeMu.Lock()
	if c.freezeTimer != nil {
		c.freezeTimer.Stop()
	}
	c.freezeMu.Unlock()
}

// Stats is the per-client snapshot returned by Instance.getClientStats
// .
type Stats struct {
	ClientName         string          `json:"clientName"`
	IsFrozen           bool            `json:"isFrozen"`
	IsThawing          bool            `json:"isThawing"`
	ThawRequestCount   int             `json:"thawRequestCount"`
	RateLimit          quotas.Snapshot `json:"rateLimit"`
	RequestsInQueue    RequestGroup    `json:"requestsInQueue"`
	RequestsInProgress RequestGroup    `json:"requestsInProgress"`
}

type RequestGroup struct {
	Count    int              `json:"count"`
	Cost     int              `json:"cost"`
	Requests []*record.Record `json:"requests"`
}

func (c *Client) Stats() Stats {
	inQueue, inProgress := c.requests.Snapshot()
	c.freezeMu.Lock()
	frozen := c.frozen
	thawCount := c.thawRequestCount
	c.freezeMu.Unlock()
	return Stats{
		ClientName:         c.name,
		IsFrozen:           frozen,
		IsThawing:          thawCount > 0,
		ThawRequestCount:   thawCount,
		RateLimit:          c.Limiter().Snapshot(),
		RequestsInQueue:    toGroup(inQueue),
		RequestsInProgress: toGroup(inProgress),
	}
}

func toGroup(recs []*record.Record) RequestGroup {
	g := RequestGroup{Requests: recs}
	for _, r := range recs {
		g.Count++
		g.Cost += r.Cost
	}
	return g
}

// newLoopGuardToken mints a fresh UUID used by the single-owner admission
// loop guard ("a single-owner guard (UUID written and compared) to
// prevent reentrant loops").
func newLoopGuardToken() string { return uuid.NewString() }

func marshalRecord(rec *record.Record) []byte {
	b, _ := json.Marshal(rec)
	return b
}
