// Package screen runs the live order board engine for one physical display:
// the manager console or the store/kitchen screen. It ties the credential
// resolver, snapshot fetcher, push-channel listener, and reconciliation
// scheduler together around a single board state, and exposes the
// manager-only transition operations.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/primecut/liveboard/backend"
	"github.com/primecut/liveboard/board"
	"github.com/primecut/liveboard/events"
	"github.com/primecut/liveboard/order"
	"github.com/primecut/liveboard/pickup"
	"github.com/primecut/liveboard/session"
)

// ErrManagerOnly is returned when a transition operation is invoked on a
// non-manager screen.
var ErrManagerOnly = errors.New("screen: operation requires the manager role")

// ErrOrderNotFound is returned when an operation names an order the board
// does not currently show.
var ErrOrderNotFound = errors.New("screen: order not on the board")

// Fulfillment is the backend surface the engine needs. *backend.Client
// satisfies it; tests substitute fakes.
type Fulfillment interface {
	FetchOrders(ctx context.Context, role session.Role) ([]order.Order, error)
	Advance(ctx context.Context, orderID string) error
	ConfirmPickup(ctx context.Context, orderID string) error
	Health() backend.Health
}

// Options configures a screen component.
type Options struct {
	Role     session.Role
	ScreenID string

	// StoreLabel is printed on pickup tokens.
	StoreLabel string

	// ReconcileInterval is the unconditional refetch backstop period.
	ReconcileInterval time.Duration

	// PostTransitionDelay is how long after an advance or confirm the
	// verification refetch is scheduled.
	PostTransitionDelay time.Duration

	Resolver *session.Resolver
	Backend  Fulfillment

	// Conn is the push-channel connection. Nil disables the event
	// listener and publisher; reconciliation still converges the board.
	Conn *nats.Conn

	// SessionDir, when set, is watched for the logout side-channel.
	SessionDir string

	Logger *slog.Logger

	// Registry receives the screen's metrics. Nil disables them.
	Registry prometheus.Registerer
}

// Component is the engine for one screen.
type Component struct {
	role     session.Role
	screenID string
	opts     Options

	resolver *session.Resolver
	client   Fulfillment
	state    *board.State
	inv      *board.Invalidator
	handoff  *pickup.Handoff

	listener  *events.Listener
	publisher *events.Publisher
	watcher   *session.Watcher

	metrics *board.Metrics
	logger  *slog.Logger

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Counters
	fetchesPerformed atomic.Int64
	fetchFailures    atomic.Int64
	lastFetchMu      sync.RWMutex
	lastFetch        time.Time
}

// New creates a screen component. It does not touch the network; Start does.
func New(opts Options) (*Component, error) {
	if opts.Role != session.RoleManager && opts.Role != session.RoleStore {
		return nil, fmt.Errorf("invalid role %q", opts.Role)
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if opts.ScreenID == "" {
		return nil, fmt.Errorf("screen ID is required")
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 30 * time.Second
	}
	if opts.PostTransitionDelay <= 0 {
		opts.PostTransitionDelay = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "screen", "role", opts.Role, "screen_id", opts.ScreenID)

	c := &Component{
		role:     opts.Role,
		screenID: opts.ScreenID,
		opts:     opts,
		resolver: opts.Resolver,
		client:   opts.Backend,
		state:    board.NewState(),
		inv:      board.NewInvalidator(),
		logger:   logger,
	}

	c.handoff = pickup.NewHandoff(c.state, opts.Backend, logger, func() {
		c.scheduleRefetch()
	})

	if opts.Registry != nil {
		c.metrics = board.NewMetrics(opts.Registry, string(opts.Role))
	}

	return c, nil
}

// State exposes the board for the rendering layer.
func (c *Component) State() *board.State {
	return c.state
}

// Invalidate enqueues a refetch; the manual-refresh path for the UI.
func (c *Component) Invalidate() {
	c.inv.Invalidate()
}

// Start resolves the credential and brings up the fetch consumer, the
// reconciliation ticker, the push-channel subscriptions, and the session
// watcher. Credential absence is a hard precondition failure: nothing is
// fetched or subscribed and session.ErrNoCredential is returned so the
// caller can redirect to the role's login surface.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}

	if _, err := c.resolver.Resolve(c.role); err != nil {
		c.mu.Unlock()
		c.state.SetAuthenticated(false)
		if errors.Is(err, session.ErrNoCredential) {
			return session.ErrNoCredential
		}
		return fmt.Errorf("resolve credential: %w", err)
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.runCtx = subCtx
	c.cancel = cancel
	c.mu.Unlock()

	c.state.SetAuthenticated(true)

	if c.opts.Conn != nil {
		c.publisher = events.NewPublisher(c.opts.Conn, c.screenID, c.logger)
		c.listener = events.NewListener(c.opts.Conn, c.role, c.screenID, c.logger)
		c.listener.OnInvalidate = func() {
			if c.metrics != nil {
				c.metrics.PushEvents.WithLabelValues("order").Inc()
			}
			c.inv.Invalidate()
		}
		c.listener.OnPickupConfirmed = func(orderID string) {
			if c.metrics != nil {
				c.metrics.PushEvents.WithLabelValues("pickup-confirmed").Inc()
			}
			if err := c.handoff.Confirm(subCtx, orderID); err != nil {
				c.logger.Warn("Relayed pickup confirmation failed", "order_id", orderID, "error", err)
			}
		}
		if err := c.listener.Subscribe(); err != nil {
			cancel()
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return fmt.Errorf("subscribe push channel: %w", err)
		}
	}

	if c.opts.SessionDir != "" {
		watcher, err := session.NewWatcher(c.opts.SessionDir, c.role, c.resolver, c.logger)
		if err != nil {
			c.logger.Warn("Session watcher unavailable, relying on request failures", "error", err)
		} else if err := watcher.Start(subCtx); err != nil {
			c.logger.Warn("Session watcher failed to start", "error", err)
			watcher.Close()
		} else {
			c.watcher = watcher
			c.wg.Add(1)
			go c.watchCredential(subCtx)
		}
	}

	c.wg.Add(2)
	go c.fetchLoop(subCtx)
	go c.reconcileLoop(subCtx)

	// Initial snapshot.
	c.inv.Invalidate()

	c.logger.Info("Screen started",
		"reconcile_interval", c.opts.ReconcileInterval,
		"push_channel", c.opts.Conn != nil)

	return nil
}

// fetchLoop is the single consumer of the invalidation queue; board state
// has exactly one writer.
func (c *Component) fetchLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.inv.C():
			c.fetchOnce(ctx)
		}
	}
}

// fetchOnce pulls one authoritative snapshot and replaces the board.
func (c *Component) fetchOnce(ctx context.Context) {
	c.fetchesPerformed.Add(1)
	c.state.SetLoading(true)

	orders, err := c.client.FetchOrders(ctx, c.role)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.fetchFailures.Add(1)
		if c.metrics != nil {
			c.metrics.SnapshotFetches.WithLabelValues("failure").Inc()
		}

		if errors.Is(err, backend.ErrUnauthorized) {
			c.handleCredentialLoss("backend rejected credential")
			return
		}

		// Transient trouble: keep the previous board visible and let the
		// next reconciliation try again.
		c.logger.Error("Snapshot fetch failed", "error", err)
		c.state.SetError("order feed unavailable")
		return
	}

	for _, o := range orders {
		if !order.Known(o.Status) {
			c.logger.Warn("Unknown order status, displaying as new",
				"order_id", o.ID,
				"status", o.Status)
		}
	}

	c.state.ApplySnapshot(orders)
	c.updateLastFetch()
	if c.metrics != nil {
		c.metrics.SnapshotFetches.WithLabelValues("success").Inc()
		c.metrics.ObserveLanes(c.state)
	}

	c.logger.Debug("Snapshot applied", "orders", len(orders))
}

// reconcileLoop is the correctness backstop: even with every push event
// lost, the board converges within one interval plus a fetch round-trip.
func (c *Component) reconcileLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.metrics != nil {
				c.metrics.ReconcileTicks.Inc()
			}
			c.inv.Invalidate()
		}
	}
}

// watchCredential turns the logout side-channel into a teardown.
func (c *Component) watchCredential(ctx context.Context) {
	defer c.wg.Done()

	select {
	case <-ctx.Done():
	case <-c.watcher.CredentialLost():
		c.handleCredentialLoss("session cleared")
	}
}

// handleCredentialLoss stops all background work and flags the screen
// unauthenticated. The rendering layer sees the flag and redirects to the
// role's login surface; nothing is retried locally.
func (c *Component) handleCredentialLoss(reason string) {
	c.logger.Info("Authentication lost, stopping screen", "reason", reason)
	c.state.SetAuthenticated(false)

	c.mu.RLock()
	cancel := c.cancel
	c.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if c.listener != nil {
		c.listener.Close()
	}
}

// Advance requests the status advance for an order; manager only. Orders
// past the new lane are ineligible and the call is a no-op — the backend
// request is idempotent regardless, this just avoids pointless traffic.
// The board is not touched: the verification refetch observes the result.
func (c *Component) Advance(ctx context.Context, orderID string) error {
	if c.role != session.RoleManager {
		return ErrManagerOnly
	}

	lane, ok := c.state.LaneOf(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if lane != order.LaneNew {
		c.logger.Debug("Advance ignored, order already past new", "order_id", orderID, "lane", lane)
		return nil
	}

	if err := c.client.Advance(ctx, orderID); err != nil {
		if c.metrics != nil {
			c.metrics.Transitions.WithLabelValues("advance", "failure").Inc()
		}
		// Best effort: the discrepancy self-heals on the next
		// reconciliation.
		c.logger.Warn("Advance request failed", "order_id", orderID, "error", err)
		return err
	}

	if c.metrics != nil {
		c.metrics.Transitions.WithLabelValues("advance", "success").Inc()
	}
	c.logger.Info("Advance requested", "order_id", orderID)

	if c.publisher != nil {
		if err := c.publisher.StatusChanged(orderID); err != nil {
			// Hint only; the store screen's reconciliation covers the loss.
			c.logger.Warn("Status hint publish failed", "order_id", orderID, "error", err)
		}
	}

	c.scheduleRefetch()
	return nil
}

// IssueToken builds the pickup token for an order currently on the board;
// manager only. The token is a display artifact, never transmitted.
func (c *Component) IssueToken(orderID string) (pickup.Token, error) {
	if c.role != session.RoleManager {
		return pickup.Token{}, ErrManagerOnly
	}

	o, ok := c.state.Order(orderID)
	if !ok {
		return pickup.Token{}, ErrOrderNotFound
	}
	return pickup.Issue(o, c.opts.StoreLabel), nil
}

// ConfirmPickup records a pickup from the manager console. The relayed
// delivery-partner path arrives through the push channel and lands on the
// same handler.
func (c *Component) ConfirmPickup(ctx context.Context, orderID string) error {
	if c.role != session.RoleManager {
		return ErrManagerOnly
	}

	err := c.handoff.Confirm(ctx, orderID)
	if c.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		c.metrics.Transitions.WithLabelValues("confirm", result).Inc()
	}
	return err
}

// scheduleRefetch queues a verification fetch after the configured delay,
// giving the backend time to settle. The context guard keeps a scheduled
// refetch from firing into a stopped screen.
func (c *Component) scheduleRefetch() {
	// The Add must be decided under the lock so Stop's Wait cannot race a
	// late Add.
	c.mu.RLock()
	if !c.running {
		c.mu.RUnlock()
		return
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	go func() {
		defer c.wg.Done()

		timer := time.NewTimer(c.opts.PostTransitionDelay)
		defer timer.Stop()

		select {
		case <-c.stopped():
		case <-timer.C:
			c.inv.Invalidate()
		}
	}()
}

// stopped returns a channel closed when the component's run context ends.
func (c *Component) stopped() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.runCtx != nil {
		return c.runCtx.Done()
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Stop tears the screen down: reconcile timer, push subscriptions, session
// watcher, and any pending verification refetch go together, so nothing
// writes board state after Stop returns.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.Close()
	}
	if c.watcher != nil {
		c.watcher.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		c.logger.Warn("Timed out waiting for background work to stop")
	}

	c.logger.Info("Screen stopped",
		"fetches", c.fetchesPerformed.Load(),
		"fetch_failures", c.fetchFailures.Load())

	return nil
}

// HealthStatus is the screen's health snapshot for the /healthz surface.
type HealthStatus struct {
	Healthy       bool           `json:"healthy"`
	Status        string         `json:"status"`
	Authenticated bool           `json:"authenticated"`
	Uptime        time.Duration  `json:"uptime"`
	LastFetch     time.Time      `json:"last_fetch,omitempty"`
	Fetches       int64          `json:"fetches"`
	FetchFailures int64          `json:"fetch_failures"`
	Backend       backend.Health `json:"backend"`
}

// Health returns the current health status.
func (c *Component) Health() HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	var uptime time.Duration
	if running {
		uptime = time.Since(startTime)
	}

	return HealthStatus{
		Healthy:       running && c.state.Authenticated(),
		Status:        status,
		Authenticated: c.state.Authenticated(),
		Uptime:        uptime,
		LastFetch:     c.getLastFetch(),
		Fetches:       c.fetchesPerformed.Load(),
		FetchFailures: c.fetchFailures.Load(),
		Backend:       c.client.Health(),
	}
}

func (c *Component) updateLastFetch() {
	c.lastFetchMu.Lock()
	c.lastFetch = time.Now()
	c.lastFetchMu.Unlock()
}

func (c *Component) getLastFetch() time.Time {
	c.lastFetchMu.RLock()
	defer c.lastFetchMu.RUnlock()
	return c.lastFetch
}
