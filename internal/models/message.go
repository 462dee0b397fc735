package models

import (
	"encoding/json"
	"time"
)

// AuthorRole identifies who wrote a message within a conversation thread.
type AuthorRole string

const (
	// AuthorUser marks a message written by the customer
	AuthorUser AuthorRole = "user"

	// AuthorAdmin marks a message written by a staff member
	AuthorAdmin AuthorRole = "admin"
)

// Message is a single chat message in a customer's conversation thread.
// Once stored, a message is immutable.
type Message struct {
	// ID is the unique identifier for this message. The router generates
	// one if the client did not supply it.
	ID string `json:"id"`

	// UserID is the customer identity the thread belongs to. For
	// admin-authored messages this is the target customer, not the admin.
	UserID string `json:"userId"`

	// AuthorRole records whether the customer or an admin wrote it
	AuthorRole AuthorRole `json:"sender"`

	// Body is the text payload
	Body string `json:"message"`

	// Timestamp is set by the router at receipt time; client-supplied
	// timestamps are not trusted
	Timestamp time.Time `json:"timestamp"`

	// Action is an optional tag (e.g. "callback_request", "email_request")
	// carried through unchanged
	Action string `json:"action,omitempty"`

	// TargetUserID addresses admin-authored messages to one customer.
	// Only meaningful on inbound payloads.
	TargetUserID string `json:"targetUserId,omitempty"`
}

// Conversation summarizes one customer's thread for the admin dashboard.
type Conversation struct {
	UserID          string          `json:"userId"`
	IsOnline        bool            `json:"isOnline"`
	LastMessage     string          `json:"lastMessage"`
	LastMessageTime *time.Time      `json:"lastMessageTime"`
	MessageCount    int             `json:"messageCount"`
	UserInfo        json.RawMessage `json:"userInfo"`
}
