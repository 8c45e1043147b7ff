package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/primecut/liveboard/events"
	"github.com/primecut/liveboard/order"
)

var (
	errNotFound     = errors.New("order not found")
	errInvalidState = errors.New("invalid status transition")
)

// orderStore is the in-memory order book.
type orderStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func newOrderStore() *orderStore {
	return &orderStore{orders: make(map[string]order.Order)}
}

func (s *orderStore) seed() {
	now := time.Now()
	samples := []order.Order{
		{Status: order.StatusPending, CreatedAt: now.Add(-2 * time.Minute), Items: []order.LineItem{
			{ID: "li-1", Name: "Ribeye 400g", Quantity: 2, UnitPrice: 18.50},
			{ID: "li-2", Name: "Lamb chops 500g", Quantity: 1, UnitPrice: 14.00},
		}},
		{Status: order.StatusConfirmed, CreatedAt: now.Add(-5 * time.Minute), Items: []order.LineItem{
			{ID: "li-3", Name: "Chicken thighs 1kg", Quantity: 1, UnitPrice: 7.90},
		}},
		{Status: order.StatusPreparing, CreatedAt: now.Add(-11 * time.Minute), Items: []order.LineItem{
			{ID: "li-4", Name: "Beef mince 500g", Quantity: 3, UnitPrice: 6.20},
		}},
		{Status: order.StatusReady, CreatedAt: now.Add(-19 * time.Minute), Items: []order.LineItem{
			{ID: "li-5", Name: "Pork belly 800g", Quantity: 1, UnitPrice: 11.40},
		}},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range samples {
		o.ID = newOrderID(o.CreatedAt)
		finalize(&o)
		s.orders[o.ID] = o
	}
}

// newOrderID mimics the production identifier shape: date plus a numeric
// suffix the pickup code is cut from.
func newOrderID(t time.Time) string {
	return fmt.Sprintf("ord-%s-%06d", t.Format("20060102"), rand.Intn(1000000))
}

func finalize(o *order.Order) {
	o.ItemCount = 0
	o.Total = 0
	for _, li := range o.Items {
		o.ItemCount += li.Quantity
		o.Total += float64(li.Quantity) * li.UnitPrice
	}
}

func (s *orderStore) list() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *orderStore) create(items []order.LineItem) order.Order {
	o := order.Order{
		ID:        newOrderID(time.Now()),
		CreatedAt: time.Now(),
		Status:    order.StatusPending,
		Items:     items,
	}
	finalize(&o)
	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
	return o
}

// setStatus applies a transition. The production service only accepts
// forward moves; the screen engine's advance is pending/confirmed to
// preparing, the rest exist for driving manual tests.
func (s *orderStore) setStatus(id string, status order.Status) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, errNotFound
	}
	if !validTransition(o.Status, status) {
		return order.Order{}, fmt.Errorf("%w: %s to %s", errInvalidState, o.Status, status)
	}
	o.Status = status
	s.orders[id] = o
	return o, nil
}

func validTransition(from, to order.Status) bool {
	switch to {
	case order.StatusPreparing:
		return from == order.StatusPending || from == order.StatusConfirmed
	case order.StatusReady:
		return from == order.StatusPreparing
	case order.StatusPickedUp:
		return from == order.StatusReady
	case order.StatusInTransit:
		return from == order.StatusPickedUp
	default:
		return false
	}
}

// confirmPickup is the idempotent handoff endpoint: the first confirmation
// moves the order, a repeat reports conflict so callers can treat the
// handoff as already done.
func (s *orderStore) confirmPickup(id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, errNotFound
	}
	if o.Status == order.StatusPickedUp || o.Status == order.StatusInTransit {
		return o, errInvalidState
	}
	o.Status = order.StatusPickedUp
	s.orders[id] = o
	return o, nil
}

type server struct {
	engine    *gin.Engine
	store     *orderStore
	publisher *events.Publisher
	token     string
	logger    *slog.Logger
}

func newServer(store *orderStore, publisher *events.Publisher, token string, logger *slog.Logger) *server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s := &server{engine: r, store: store, publisher: publisher, token: token, logger: logger}
	s.registerRoutes()
	return s
}

func (s *server) registerRoutes() {
	authed := s.engine.Group("/", s.requireBearer)
	{
		// Both screen roles fetch the same snapshot shape; the path
		// segment mirrors the production service's per-surface routing.
		authed.GET("/manager-live/orders", s.listOrders)
		authed.GET("/store/orders", s.listOrders)

		orders := authed.Group("/orders")
		orders.POST("", s.createOrder)
		orders.PATCH(":id/status", s.patchStatus)
		orders.POST(":id/pickup/confirm", s.pickupConfirm)
	}
}

func (s *server) requireBearer(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if s.token != "" && token != s.token {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
		return
	}
	c.Next()
}

func (s *server) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.store.list()})
}

type createOrderReq struct {
	Items []order.LineItem `json:"items"`
}

func (s *server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one item required"})
		return
	}
	o := s.store.create(req.Items)
	s.hint(func() error { return s.publisher.OrderCreated(o.ID) })
	c.JSON(http.StatusCreated, o)
}

type patchStatusReq struct {
	Status order.Status `json:"status"`
}

func (s *server) patchStatus(c *gin.Context) {
	var req patchStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.store.setStatus(c.Param("id"), req.Status)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.hint(func() error { return s.publisher.StatusChanged(o.ID) })
	c.JSON(http.StatusOK, o)
}

func (s *server) pickupConfirm(c *gin.Context) {
	o, err := s.store.confirmPickup(c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.hint(func() error { return s.publisher.PickupConfirmed(o.ID) })
	c.JSON(http.StatusOK, o)
}

// hint publishes a push-channel event when a publisher is wired. Delivery
// is best effort on the real channel too, so failures only log.
func (s *server) hint(publish func() error) {
	if s.publisher == nil {
		return
	}
	if err := publish(); err != nil {
		s.logger.Warn("Push hint failed", "error", err)
	}
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
