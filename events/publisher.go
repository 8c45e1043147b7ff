package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher emits push-channel hints. The manager console publishes a
// status hint after a successful advance so the store display refetches
// immediately instead of waiting out a reconciliation interval.
type Publisher struct {
	conn   *nats.Conn
	origin string
	logger *slog.Logger
}

// NewPublisher creates a publisher identified by origin (the screen ID).
func NewPublisher(conn *nats.Conn, origin string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		origin: origin,
		logger: logger.With("component", "events"),
	}
}

// StatusChanged publishes a status-change hint for an order. Receivers
// discard the payload and refetch, so a lost publish costs latency only.
func (p *Publisher) StatusChanged(orderID string) error {
	return p.publish(SubjectOrderStatus, orderID, "status-changed")
}

// OrderCreated publishes a new-order hint.
func (p *Publisher) OrderCreated(orderID string) error {
	return p.publish(SubjectOrderCreated, orderID, "order-created")
}

// PickupConfirmed relays a pickup confirmation to the manager console.
func (p *Publisher) PickupConfirmed(orderID string) error {
	return p.publish(SubjectPickupConfirmed, orderID, "pickup-confirmed")
}

func (p *Publisher) publish(subject, orderID, kind string) error {
	hint := Hint{
		OrderID:   orderID,
		Kind:      kind,
		Origin:    p.origin,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("marshal hint: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
