package screen

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/primecut/liveboard/session"
)

// HTTPHandler serves the rendering layer for one screen: the three-column
// board plus the manager-only transition endpoints.
type HTTPHandler struct {
	component *Component
	metrics   http.Handler
}

// NewHTTPHandler creates the handler. metrics is the /metrics endpoint
// (promhttp); nil disables it.
func NewHTTPHandler(component *Component, metrics http.Handler) *HTTPHandler {
	return &HTTPHandler{component: component, metrics: metrics}
}

// RegisterHTTPHandlers registers the rendering-layer routes.
func (h *HTTPHandler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/board", h.handleBoard)
	mux.HandleFunc("/api/refresh", h.handleRefresh)
	mux.HandleFunc("/api/orders/", h.handleOrdersWithID)
	mux.HandleFunc("/healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleBoard handles GET /api/board - the full render model.
func (h *HTTPHandler) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.component.State().Snapshot())
}

// handleRefresh handles POST /api/refresh - a manual invalidation.
func (h *HTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.component.Invalidate()
	w.WriteHeader(http.StatusAccepted)
}

// handleOrdersWithID handles requests to /api/orders/{id}/* endpoints.
func (h *HTTPHandler) handleOrdersWithID(w http.ResponseWriter, r *http.Request) {
	// Path: /api/orders/{id}/{action}
	const prefix = "/api/orders/"
	remaining := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(remaining, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Order ID and action required", http.StatusBadRequest)
		return
	}
	orderID, action := parts[0], parts[1]

	switch action {
	case "advance":
		h.handleAdvance(w, r, orderID)
	case "pickup-token":
		h.handlePickupToken(w, r, orderID)
	case "pickup-confirm":
		h.handlePickupConfirm(w, r, orderID)
	default:
		http.Error(w, "Unknown action", http.StatusNotFound)
	}
}

// handleAdvance handles POST /api/orders/{id}/advance.
func (h *HTTPHandler) handleAdvance(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.component.Advance(r.Context(), orderID); err != nil {
		writeTransitionError(w, err)
		return
	}

	// Accepted, not applied: the board reflects the change after the
	// verification refetch observes the backend.
	w.WriteHeader(http.StatusAccepted)
}

// handlePickupToken handles GET /api/orders/{id}/pickup-token.
func (h *HTTPHandler) handlePickupToken(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, err := h.component.IssueToken(orderID)
	if err != nil {
		writeTransitionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// handlePickupConfirm handles POST /api/orders/{id}/pickup-confirm.
func (h *HTTPHandler) handlePickupConfirm(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.component.ConfirmPickup(r.Context(), orderID); err != nil {
		writeTransitionError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleHealth handles GET /healthz.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := h.component.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// writeTransitionError maps engine errors onto HTTP statuses.
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrManagerOnly):
		writeJSONError(w, http.StatusForbidden, "manager_only", "This screen cannot perform transitions")
	case errors.Is(err, ErrOrderNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "Order is not on the board")
	case errors.Is(err, session.ErrNoCredential):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "No session credential")
	default:
		writeJSONError(w, http.StatusBadGateway, "backend_error", err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
