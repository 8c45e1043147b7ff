package backend

import (
	"sync"
	"time"
)

// Health tracks the observed health of the fulfillment endpoint so the
// screen's health surface can report backend trouble distinctly from its
// own state.
type Health struct {
	// Available indicates the endpoint is currently usable.
	Available bool `json:"available"`

	// LastSuccess is the time of the last successful request.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// LastFailure is the time of the last failed request.
	LastFailure time.Time `json:"last_failure,omitempty"`

	// FailureCount is the number of consecutive failures.
	FailureCount int `json:"failure_count"`
}

// healthTracker records request outcomes. A threshold of consecutive
// failures marks the endpoint unavailable until the next success.
type healthTracker struct {
	mu        sync.RWMutex
	threshold int
	status    Health
}

func newHealthTracker(threshold int) *healthTracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &healthTracker{
		threshold: threshold,
		status:    Health{Available: true},
	}
}

func (h *healthTracker) markSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status.LastSuccess = time.Now()
	h.status.FailureCount = 0
	h.status.Available = true
}

func (h *healthTracker) markFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status.LastFailure = time.Now()
	h.status.FailureCount++
	if h.status.FailureCount >= h.threshold {
		h.status.Available = false
	}
}

// snapshot returns a copy of the current status.
func (h *healthTracker) snapshot() Health {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
