package models

import (
	"encoding/json"
	"time"
)

// Role identifies which routing rules apply to a session.
type Role string

const (
	// RoleCustomer is a website visitor chatting with staff
	RoleCustomer Role = "customer"

	// RoleAdmin is a staff member answering customers
	RoleAdmin Role = "admin"
)

// Session represents one live connection's tracked identity, role and metadata.
// A userId may have any number of simultaneous sessions (multiple browser tabs);
// each connection is tracked independently.
type Session struct {
	// ConnectionID is assigned by the gateway, unique for the connection's
	// lifetime and never reused
	ConnectionID string `json:"connectionId"`

	// UserID is the caller-supplied stable identity that survives reconnects.
	// It is the key under which chat history is stored.
	UserID string `json:"userId"`

	// Role is customer or admin. A session may be upgraded from customer
	// to admin after authentication.
	Role Role `json:"userType"`

	// AdminID is the staff identifier, set when the session becomes an admin
	AdminID string `json:"adminId,omitempty"`

	// UserInfo is opaque client metadata captured at join time
	// (originating page, user agent, etc). Immutable after creation.
	UserInfo json.RawMessage `json:"userInfo,omitempty"`

	// JoinedAt is when the session was registered
	JoinedAt time.Time `json:"joinedAt"`

	// LastSeenAt is updated when the session disconnects
	LastSeenAt time.Time `json:"lastSeenAt"`

	// Online is true from registration until disconnect
	Online bool `json:"isOnline"`
}
