// Package order defines the fulfillment domain model shared by every screen:
// orders, their backend lifecycle statuses, and the display lanes the board
// groups them into.
package order

import "time"

// Order is a read-only, eventually-consistent copy of a backend order.
// The fulfillment service owns the durable record; screens never write it.
type Order struct {
	ID        string     `json:"id"`
	ItemCount int        `json:"item_count"`
	Total     float64    `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	Status    Status     `json:"status"`
	Items     []LineItem `json:"items"`
}

// LineItem is a single line of an order.
type LineItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Status is a backend-assigned fulfillment status. The set is owned by the
// fulfillment service and may grow; screens must tolerate values they do
// not recognize.
type Status string

const (
	// StatusPending is a newly placed order awaiting confirmation.
	StatusPending Status = "pending"

	// StatusConfirmed is an order the backend has accepted.
	StatusConfirmed Status = "confirmed"

	// StatusPreparing is an order the kitchen is working on.
	StatusPreparing Status = "preparing"

	// StatusReady is a prepared order waiting for physical handoff.
	StatusReady Status = "ready"

	// StatusPickedUp is an order a delivery partner has collected.
	StatusPickedUp Status = "picked_up"

	// StatusInTransit is an order on its way to the customer.
	StatusInTransit Status = "in_transit"
)
