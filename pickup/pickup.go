// Package pickup implements the physical handoff of an order to a delivery
// partner: the displayable pickup token and the idempotent confirmation
// command both actors converge on.
package pickup

import (
	"context"
	"log/slog"
	"time"

	"github.com/primecut/liveboard/board"
	"github.com/primecut/liveboard/order"
)

// codeLength is how many trailing characters of the order identifier form
// the human-readable pickup code.
const codeLength = 6

// Token is the displayable pickup artifact: what the store screen renders
// as a QR code plus a short human-checkable code. It is built on demand
// from the current snapshot and carries no authority of its own — the
// backend polices the actual confirmation.
type Token struct {
	OrderID    string           `json:"order_id"`
	Code       string           `json:"code"`
	IssuedAt   time.Time        `json:"issued_at"`
	StoreLabel string           `json:"store_label"`
	ItemCount  int              `json:"item_count"`
	Total      float64          `json:"total"`
	Items      []order.LineItem `json:"items"`
}

// Issue builds a pickup token from an order snapshot.
func Issue(o order.Order, storeLabel string) Token {
	return Token{
		OrderID:    o.ID,
		Code:       shortCode(o.ID),
		IssuedAt:   time.Now(),
		StoreLabel: storeLabel,
		ItemCount:  o.ItemCount,
		Total:      o.Total,
		Items:      o.Items,
	}
}

// shortCode returns the identifier suffix used as the spoken/typed code.
func shortCode(orderID string) string {
	if len(orderID) <= codeLength {
		return orderID
	}
	return orderID[len(orderID)-codeLength:]
}

// Confirmer is the backend side of a pickup confirmation.
type Confirmer interface {
	ConfirmPickup(ctx context.Context, orderID string) error
}

// Handoff is the single confirmation command handler. The manager console
// and the delivery-partner relay both call Confirm, so it must be safe
// under at-least-once delivery and under both actors racing to confirm the
// same physical handoff.
type Handoff struct {
	state    *board.State
	backend  Confirmer
	logger   *slog.Logger
	onChange func()
}

// NewHandoff creates the handler. onChange runs after a confirmation is
// accepted (locally short-circuited or sent to the backend) so the screen
// can dismiss the token view and schedule a refetch.
func NewHandoff(state *board.State, backend Confirmer, logger *slog.Logger, onChange func()) *Handoff {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handoff{
		state:    state,
		backend:  backend,
		logger:   logger.With("component", "pickup"),
		onChange: onChange,
	}
}

// Confirm records a pickup. An order already in the picked-up lane is a
// successful no-op; otherwise the backend's idempotent confirm endpoint is
// called. Board state is never mutated here — the next fetch observes the
// backend's authoritative result.
func (h *Handoff) Confirm(ctx context.Context, orderID string) error {
	if lane, ok := h.state.LaneOf(orderID); ok && lane == order.LanePickedUp {
		h.logger.Debug("Order already picked up, confirmation is a no-op", "order_id", orderID)
		return nil
	}

	if err := h.backend.ConfirmPickup(ctx, orderID); err != nil {
		// Best effort: the order stays in its last-known lane and the
		// next reconciliation surfaces the true state.
		h.logger.Warn("Pickup confirmation failed", "order_id", orderID, "error", err)
		return err
	}

	h.logger.Info("Pickup confirmed", "order_id", orderID)
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}
