// Package board holds the in-memory order board for one screen: the four
// display lanes, the authenticated/loading/error flags the rendering layer
// consumes, and the invalidation queue that serializes refetches.
package board

import (
	"sort"
	"sync"
	"time"

	"github.com/primecut/liveboard/order"
)

// Snapshot is the read model handed to the rendering layer: three flags and
// the orders grouped per lane, each lane ordered by creation time.
type Snapshot struct {
	Authenticated bool                        `json:"authenticated"`
	Loading       bool                        `json:"loading"`
	Error         string                      `json:"error,omitempty"`
	LastRefresh   time.Time                   `json:"last_refresh,omitempty"`
	Lanes         map[order.Lane][]order.Order `json:"lanes"`
}

// State is the board for one screen. The screen's fetch loop is the only
// writer of order data; transitions never touch it directly and wait for the
// next fetch to observe the backend's result.
type State struct {
	mu sync.RWMutex

	authenticated bool
	loading       bool
	errMsg        string
	lastRefresh   time.Time
	orders        []order.Order
}

// NewState creates an empty, unauthenticated board.
func NewState() *State {
	return &State{}
}

// ApplySnapshot replaces the entire order set with a fetched snapshot and
// clears any error. Replace, never merge: an order absent from the fetch is
// gone from the board, so a stale entry cannot outlive one reconciliation.
func (s *State) ApplySnapshot(orders []order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make([]order.Order, len(orders))
	copy(s.orders, orders)
	s.errMsg = ""
	s.loading = false
	s.lastRefresh = time.Now()
}

// SetError records a fetch failure. The previous orders stay visible; a
// transient failure degrades the board to stale, never to blank.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = msg
	s.loading = false
}

// SetLoading marks a fetch in flight.
func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = loading
}

// SetAuthenticated records whether the screen holds a usable credential.
// Going unauthenticated clears the board: there is nothing this screen is
// entitled to show.
func (s *State) SetAuthenticated(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = ok
	if !ok {
		s.orders = nil
		s.errMsg = ""
		s.loading = false
	}
}

// Authenticated reports the current credential state.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// LaneOf returns the display lane of an order currently on the board.
func (s *State) LaneOf(orderID string) (order.Lane, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == orderID {
			return order.LaneFor(o.Status), true
		}
	}
	return "", false
}

// Order returns a copy of an order currently on the board.
func (s *State) Order(orderID string) (order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return order.Order{}, false
}

// Snapshot returns a copy of the board for rendering. Every lane key is
// present even when empty so the rendering layer always draws four columns.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lanes := make(map[order.Lane][]order.Order, len(order.Lanes))
	for _, lane := range order.Lanes {
		lanes[lane] = []order.Order{}
	}
	for _, o := range s.orders {
		lane := order.LaneFor(o.Status)
		lanes[lane] = append(lanes[lane], o)
	}
	for _, lane := range order.Lanes {
		sort.SliceStable(lanes[lane], func(i, j int) bool {
			return lanes[lane][i].CreatedAt.Before(lanes[lane][j].CreatedAt)
		})
	}

	return Snapshot{
		Authenticated: s.authenticated,
		Loading:       s.loading,
		Error:         s.errMsg,
		LastRefresh:   s.lastRefresh,
		Lanes:         lanes,
	}
}

// LaneCounts returns the number of orders per lane, for metrics.
func (s *State) LaneCounts() map[order.Lane]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[order.Lane]int, len(order.Lanes))
	for _, lane := range order.Lanes {
		counts[lane] = 0
	}
	for _, o := range s.orders {
		counts[order.LaneFor(o.Status)]++
	}
	return counts
}
