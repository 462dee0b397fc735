package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nvi-digital/livechat/internal/presence"
)

// StatusResponse reports live connection counts for monitoring.
type StatusResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	ActiveUsers     int       `json:"activeUsers"`
	ActiveCustomers int       `json:"activeCustomers"`
	ActiveAdmins    int       `json:"activeAdmins"`
}

// StatusHandler serves the server status summary.
type StatusHandler struct {
	registry *presence.Registry
}

// NewStatusHandler creates a new StatusHandler instance.
func NewStatusHandler(registry *presence.Registry) *StatusHandler {
	return &StatusHandler{registry: registry}
}

// Status handles GET /
// Returns the running banner plus counts of active sessions by role.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	total, customers, admins := h.registry.Counts()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          "Live Chat Server Running",
		Timestamp:       time.Now().UTC(),
		ActiveUsers:     total,
		ActiveCustomers: customers,
		ActiveAdmins:    admins,
	})
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthCheck handles GET /health
// Returns the server's health status for monitoring and load balancer checks.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Message: "Live chat backend is running",
	})
}

// writeJSON is a helper function to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
