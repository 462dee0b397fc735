package chat

import (
	"encoding/json"
	"time"

	"github.com/nvi-digital/livechat/internal/models"
)

// Outbound event names pushed to connected clients.
const (
	EventChatHistory          = "chat_history"
	EventAdminStatus          = "admin_status"
	EventCustomerConnected    = "customer_connected"
	EventCustomerMessage      = "customer_message"
	EventCustomerTyping       = "customer_typing"
	EventCustomerStopTyping   = "customer_stop_typing"
	EventCustomerDisconnected = "customer_disconnected"
	EventActiveCustomers      = "active_customers"
	EventMessage              = "message"
	EventMessageSent          = "message_sent"
	EventAdminTyping          = "admin_typing"
	EventAdminStopTyping      = "admin_stop_typing"
	EventMessagesRead         = "messages_read"
)

// AdminStatusEvent tells customers whether any staff member is online.
type AdminStatusEvent struct {
	Online bool `json:"online"`
}

// PresenceEvent announces a customer connecting or disconnecting to admins.
type PresenceEvent struct {
	User      models.Session `json:"user"`
	Timestamp time.Time      `json:"timestamp"`
}

// CustomerMessageEvent carries a customer message to admins along with
// the authoring session so dashboards can show who sent it.
type CustomerMessageEvent struct {
	models.Message
	FromUser models.Session `json:"fromUser"`
}

// MessageSentEvent acknowledges a delivered admin message to its author.
type MessageSentEvent struct {
	Success      bool   `json:"success"`
	TargetUserID string `json:"targetUserId"`
	MessageID    string `json:"messageId"`
}

// TypingEvent reports a customer's typing transition to admins.
type TypingEvent struct {
	UserID   string          `json:"userId"`
	UserInfo json.RawMessage `json:"userInfo,omitempty"`
}

// MessagesReadEvent marks a customer's thread as read for admin dashboards.
type MessagesReadEvent struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}
