// Package events wires a screen to the push channel. Order events are
// treated strictly as invalidation hints: payloads may be dropped,
// duplicated, or reordered across two independently-operated screens, so
// their embedded data is discarded and every delivery triggers a fresh
// authoritative snapshot fetch instead. The one exception is the
// delivery-partner pickup confirmation, which is a command carrying only an
// order identifier.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Push-channel subjects. The channel is shared by the backend, both screen
// roles, and the delivery-partner relay.
const (
	// SubjectOrderCreated announces a newly placed order.
	SubjectOrderCreated = "liveboard.order.created"

	// SubjectOrderStatus announces an order status change.
	SubjectOrderStatus = "liveboard.order.status"

	// SubjectPickupConfirmed relays a delivery partner's pickup
	// confirmation to the manager console.
	SubjectPickupConfirmed = "liveboard.pickup.confirmed"
)

// Hint is the envelope order events arrive in. Only OrderID is ever read,
// and only for logging and the pickup-confirmation path; board state always
// comes from the next snapshot fetch.
type Hint struct {
	OrderID   string    `json:"order_id"`
	Kind      string    `json:"kind,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// DecodeHint parses an event payload. A malformed payload is not an error
// worth failing on for invalidation purposes; callers use the zero Hint and
// refetch anyway.
func DecodeHint(data []byte) (Hint, error) {
	var h Hint
	if err := json.Unmarshal(data, &h); err != nil {
		return Hint{}, fmt.Errorf("decode event payload: %w", err)
	}
	return h, nil
}
