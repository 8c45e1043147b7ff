// Package backend is the REST client for the fulfillment service: the full
// order snapshot per role plus the two transition requests (status advance
// and pickup confirm). The fulfillment service owns durable state; every
// read here is a full authoritative snapshot, never a delta.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/primecut/liveboard/order"
	"github.com/primecut/liveboard/session"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// TokenFunc supplies the bearer token for a request. Resolution happens per
// request so a rotated token is picked up without rebuilding the client.
type TokenFunc func() (string, error)

// Client talks to the fulfillment service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	logger     *slog.Logger
	health     *healthTracker

	// fetchRetries is how many extra attempts a transient snapshot-fetch
	// failure gets. Transition requests never retry: the reconciliation
	// cycle is their backstop.
	fetchRetries int
	backoffBase  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger.With("component", "backend")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithFetchRetries sets how many extra attempts transient snapshot-fetch
// failures get.
func WithFetchRetries(n int) Option {
	return func(client *Client) {
		client.fetchRetries = n
	}
}

// WithBackoffBase sets the base delay before a fetch retry.
func WithBackoffBase(d time.Duration) Option {
	return func(client *Client) {
		client.backoffBase = d
	}
}

// NewClient creates a fulfillment client. token is called before every
// request; a resolution failure surfaces as ErrUnauthorized-adjacent
// behavior at the call site.
func NewClient(baseURL string, token TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default().With("component", "backend"),
		health:       newHealthTracker(3),
		fetchRetries: 1,
		backoffBase:  500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// rolePath maps a screen role to its orders endpoint path segment.
func rolePath(role session.Role) string {
	if role == session.RoleManager {
		return "manager-live"
	}
	return string(role)
}

// ordersResponse is the fulfillment service's order-list payload.
type ordersResponse struct {
	Orders []order.Order `json:"orders"`
}

// FetchOrders reads the full order list for the role. Transient failures
// get one bounded retry with jitter; the previous board state stays visible
// while this runs, so a total failure here degrades to stale, not blank.
func (c *Client) FetchOrders(ctx context.Context, role session.Role) ([]order.Order, error) {
	url := fmt.Sprintf("%s/%s/orders", c.baseURL, rolePath(role))

	var lastErr error
	for attempt := 0; attempt <= c.fetchRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffWithJitter(attempt)
			c.logger.Debug("Snapshot fetch retrying",
				"attempt", attempt+1,
				"backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.do(ctx, http.MethodGet, url, nil)
		if err == nil {
			var resp ordersResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, NewFatalError(fmt.Errorf("parse orders response: %w", err))
			}
			return resp.Orders, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// advanceRequest is the status-advance payload. The target stage is backend
// policy; the only manager-triggered transition requests preparing.
type advanceRequest struct {
	Status order.Status `json:"status"`
}

// Advance requests a status advance for an order. Idempotent at the backend
// boundary: re-requesting a stage the order already reached succeeds.
// No retry; a failure self-heals on the next reconciliation.
func (c *Client) Advance(ctx context.Context, orderID string) error {
	url := fmt.Sprintf("%s/orders/%s/status", c.baseURL, orderID)

	payload, err := json.Marshal(advanceRequest{Status: order.StatusPreparing})
	if err != nil {
		return NewFatalError(fmt.Errorf("marshal advance request: %w", err))
	}

	if _, err := c.do(ctx, http.MethodPatch, url, payload); err != nil {
		return err
	}
	return nil
}

// ConfirmPickup requests pickup confirmation for an order. Idempotent: both
// the manager and the delivery partner may race to confirm the same physical
// handoff, and a repeat confirmation succeeds without regressing state.
func (c *Client) ConfirmPickup(ctx context.Context, orderID string) error {
	url := fmt.Sprintf("%s/orders/%s/pickup/confirm", c.baseURL, orderID)

	if _, err := c.do(ctx, http.MethodPost, url, nil); err != nil {
		// An already-confirmed order answers 409; that is success for an
		// at-least-once confirmation.
		if isConflict(err) {
			c.logger.Debug("Pickup already confirmed", "order_id", orderID)
			return nil
		}
		return err
	}
	return nil
}

// Health returns the observed endpoint health.
func (c *Client) Health() Health {
	return c.health.snapshot()
}

// do executes one authenticated request and classifies the outcome.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	token, err := c.token()
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.health.markFailure()
		return nil, NewTransientError(fmt.Errorf("%s %s: %w", method, url, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.health.markFailure()
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyHTTPError(resp.StatusCode, respBody)
	}

	c.health.markSuccess()
	return respBody, nil
}

// classifyHTTPError decides whether an HTTP failure is transient or fatal.
func (c *Client) classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("fulfillment API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		// Credential rejected. Do not count against endpoint health; the
		// endpoint is fine, the session is not.
		return NewFatalError(fmt.Errorf("%w: %s", ErrUnauthorized, err))
	case statusCode == http.StatusConflict:
		return NewFatalError(fmt.Errorf("%w: %w", errConflict, err))
	case statusCode == http.StatusTooManyRequests:
		c.health.markFailure()
		return NewTransientError(err)
	case statusCode >= 500:
		c.health.markFailure()
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

// errConflict marks a 409 response so ConfirmPickup can treat a repeat
// confirmation as success.
var errConflict = errors.New("backend: conflict")

func isConflict(err error) bool {
	return errors.Is(err, errConflict)
}

// backoffWithJitter computes the retry delay. Jitter prevents synchronized
// retries when several screens lose the backend at once.
func (c *Client) backoffWithJitter(attempt int) time.Duration {
	backoff := c.backoffBase * time.Duration(attempt)
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
