package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nvi-digital/livechat/internal/auth"
	"github.com/nvi-digital/livechat/internal/history"
	"github.com/nvi-digital/livechat/internal/models"
	"github.com/nvi-digital/livechat/internal/presence"
)

// AdminHandler contains the HTTP handlers for the staff dashboard:
// authentication, per-user history reads and the conversation overview.
type AdminHandler struct {
	auth     *auth.Service
	store    *history.Store
	registry *presence.Registry
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(authService *auth.Service, store *history.Store, registry *presence.Registry) *AdminHandler {
	return &AdminHandler{auth: authService, store: store, registry: registry}
}

// AuthRequest is the request body for admin authentication.
type AuthRequest struct {
	Password string `json:"password"`
}

// AuthResponse is returned by the admin authentication endpoint.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// Authenticate handles POST /admin/auth
// Compares the submitted password against the shared admin secret and
// issues a session token on success. The websocket gateway later
// verifies this token on admin_connect.
func (h *AdminHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, ok := h.auth.Authenticate(req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Invalid admin password",
		})
		return
	}

	log.Println("[Admin] Admin authenticated")
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Token:   token,
		Message: "Admin authenticated successfully",
	})
}

// ChatHistoryResponse is the per-user history read payload.
type ChatHistoryResponse struct {
	UserID       string           `json:"userId"`
	Messages     []models.Message `json:"messages"`
	MessageCount int              `json:"messageCount"`
}

// ChatHistory handles GET /admin/chat-history/{userId}
// Returns the retained thread for one user; unknown users yield an
// empty thread rather than an error.
func (h *AdminHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		http.Error(w, "user ID is required", http.StatusBadRequest)
		return
	}

	messages := h.store.Get(userID)
	writeJSON(w, http.StatusOK, ChatHistoryResponse{
		UserID:       userID,
		Messages:     messages,
		MessageCount: len(messages),
	})
}

// Conversations handles GET /admin/conversations
// Returns every known thread summarized for the dashboard, most recent
// first; threads without any message sort last.
func (h *AdminHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Conversations(h.registry))
}
