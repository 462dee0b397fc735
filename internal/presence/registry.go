package presence

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nvi-digital/livechat/internal/models"
)

var (
	// ErrDuplicateConnection is returned when a connection ID is registered twice
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrNotFound is returned when a connection ID is not in the registry
	ErrNotFound = errors.New("connection not found")
)

// Registry is the in-memory table of connected sessions, keyed by
// connection ID. It is the sole owner of Session objects; callers only
// ever receive copies.
type Registry struct {
	sessions map[string]*models.Session

	// order preserves registration order for stable iteration
	order []string

	mu sync.RWMutex
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*models.Session),
	}
}

// Register adds a new session for a connection.
// Returns ErrDuplicateConnection if the connection ID is already tracked.
// Multiple simultaneous sessions for the same userId are allowed
// (e.g. multiple browser tabs) and tracked independently.
func (r *Registry) Register(connID, userID string, role models.Role, userInfo json.RawMessage) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		return models.Session{}, ErrDuplicateConnection
	}

	now := time.Now().UTC()
	session := &models.Session{
		ConnectionID: connID,
		UserID:       userID,
		Role:         role,
		UserInfo:     userInfo,
		JoinedAt:     now,
		LastSeenAt:   now,
		Online:       true,
	}

	r.sessions[connID] = session
	r.order = append(r.order, connID)

	log.Printf("[Presence] User %s (%s) connected on %s", userID, role, connID)
	return *session, nil
}

// Unregister marks the session offline and removes it from the active set.
// The removed session is returned so callers can notify the right parties.
func (r *Registry) Unregister(connID string) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return models.Session{}, ErrNotFound
	}

	session.Online = false
	session.LastSeenAt = time.Now().UTC()
	delete(r.sessions, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.Printf("[Presence] User %s disconnected from %s", session.UserID, connID)
	return *session, nil
}

// LookupByConnection returns the session for a connection ID.
func (r *Registry) LookupByConnection(connID string) (models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[connID]
	if !exists {
		return models.Session{}, ErrNotFound
	}
	return *session, nil
}

// ListByRole returns all active sessions with the given role, in
// registration order.
func (r *Registry) ListByRole(role models.Role) []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Session, 0)
	for _, connID := range r.order {
		if s := r.sessions[connID]; s.Role == role {
			result = append(result, *s)
		}
	}
	return result
}

// LookupCustomerByUserID finds a connected customer session for a userId.
// If the user has multiple tabs open, the earliest-registered one wins.
func (r *Registry) LookupCustomerByUserID(userID string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, connID := range r.order {
		if s := r.sessions[connID]; s.Role == models.RoleCustomer && s.UserID == userID {
			return *s, true
		}
	}
	return models.Session{}, false
}

// IsOnline reports whether any connected customer session exists for a userId.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.LookupCustomerByUserID(userID)
	return ok
}

// UpgradeRole changes the role of an existing session, used for the
// customer-to-admin upgrade after authentication. The connection ID stays
// stable across the transition. Unknown connections are a silent no-op.
func (r *Registry) UpgradeRole(connID string, role models.Role, adminID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		return
	}

	session.Role = role
	session.AdminID = adminID
	log.Printf("[Presence] Connection %s upgraded to %s (%s)", connID, role, adminID)
}

// Counts returns the number of active sessions, customers and admins.
func (r *Registry) Counts() (total, customers, admins int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		switch s.Role {
		case models.RoleCustomer:
			customers++
		case models.RoleAdmin:
			admins++
		}
	}
	return len(r.sessions), customers, admins
}
