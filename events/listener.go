package events

import (
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/primecut/liveboard/session"
)

// Listener subscribes a screen to its role's push-channel subjects.
//
// Subscriptions differ per role: the store display listens for order
// created/status events (it is downstream of the manager's actions), while
// the manager console listens only for delivery-partner pickup
// confirmations — the manager originates status changes itself and relies on
// its own actions plus reconciliation for everything else.
type Listener struct {
	conn     *nats.Conn
	role     session.Role
	screenID string
	logger   *slog.Logger

	// OnInvalidate is called for every order event delivery. Required.
	OnInvalidate func()

	// OnPickupConfirmed is called with the order identifier of a relayed
	// delivery-partner confirmation. Manager role only.
	OnPickupConfirmed func(orderID string)

	subs   []*nats.Subscription
	closed atomic.Bool
}

// NewListener creates a listener for one screen.
func NewListener(conn *nats.Conn, role session.Role, screenID string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		conn:     conn,
		role:     role,
		screenID: screenID,
		logger:   logger.With("component", "events", "role", role, "screen_id", screenID),
	}
}

// Subscribe establishes the role-appropriate subscriptions.
func (l *Listener) Subscribe() error {
	switch l.role {
	case session.RoleStore:
		for _, subject := range []string{SubjectOrderCreated, SubjectOrderStatus} {
			sub, err := l.conn.Subscribe(subject, func(msg *nats.Msg) {
				l.Dispatch(msg.Subject, msg.Data)
			})
			if err != nil {
				l.unsubscribeAll()
				return err
			}
			l.subs = append(l.subs, sub)
		}

	case session.RoleManager:
		sub, err := l.conn.Subscribe(SubjectPickupConfirmed, func(msg *nats.Msg) {
			l.Dispatch(msg.Subject, msg.Data)
		})
		if err != nil {
			return err
		}
		l.subs = append(l.subs, sub)
	}

	l.logger.Info("Push-channel subscriptions established", "count", len(l.subs))
	return nil
}

// Dispatch routes one delivery. Order events invalidate regardless of what
// the payload says; the payload itself is logged and discarded.
func (l *Listener) Dispatch(subject string, data []byte) {
	if l.closed.Load() {
		return
	}

	switch subject {
	case SubjectOrderCreated, SubjectOrderStatus:
		hint, err := DecodeHint(data)
		if err != nil {
			l.logger.Debug("Unparseable event payload, refetching anyway", "subject", subject, "error", err)
		} else {
			l.logger.Debug("Push event received", "subject", subject, "order_id", hint.OrderID)
		}
		if l.OnInvalidate != nil {
			l.OnInvalidate()
		}

	case SubjectPickupConfirmed:
		hint, err := DecodeHint(data)
		if err != nil || hint.OrderID == "" {
			l.logger.Warn("Pickup confirmation without order identifier dropped", "error", err)
			return
		}
		l.logger.Info("Delivery partner confirmed pickup", "order_id", hint.OrderID)
		if l.OnPickupConfirmed != nil {
			l.OnPickupConfirmed(hint.OrderID)
		}

	default:
		l.logger.Debug("Unhandled subject", "subject", subject)
	}
}

// Close tears the subscriptions down. After Close returns no callback runs
// for later deliveries.
func (l *Listener) Close() {
	l.closed.Store(true)
	l.unsubscribeAll()
}

func (l *Listener) unsubscribeAll() {
	for _, sub := range l.subs {
		if err := sub.Unsubscribe(); err != nil {
			l.logger.Warn("Failed to unsubscribe", "subject", sub.Subject, "error", err)
		}
	}
	l.subs = nil
}
