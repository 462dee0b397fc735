package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nvi-digital/livechat/internal/auth"
	"github.com/nvi-digital/livechat/internal/chat"
	"github.com/nvi-digital/livechat/internal/history"
	"github.com/nvi-digital/livechat/internal/models"
	"github.com/nvi-digital/livechat/internal/presence"
	"github.com/nvi-digital/livechat/internal/typing"
)

// Inbound event names accepted from clients.
const (
	eventJoin            = "join"
	eventAdminConnect    = "admin_connect"
	eventMessage         = "message"
	eventAdminMessage    = "admin_message"
	eventTyping          = "typing"
	eventStopTyping      = "stop_typing"
	eventAdminTyping     = "admin_typing"
	eventAdminStopTyping = "admin_stop_typing"
	eventGetActiveUsers  = "get_active_users"
	eventMessagesRead    = "messages_read"
)

// inboundEvent is the wire format of frames received from clients.
type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// outboundEvent is the wire format of frames pushed to clients.
type outboundEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// joinPayload is sent by a client establishing its chat identity.
type joinPayload struct {
	UserID   string          `json:"userId"`
	UserType string          `json:"userType"`
	UserInfo json.RawMessage `json:"userInfo"`
}

// adminConnectPayload upgrades a session to the admin role. The token
// must have been issued by the admin auth endpoint.
type adminConnectPayload struct {
	AdminID string `json:"adminId"`
	Token   string `json:"token"`
}

// targetPayload addresses a direct admin-to-customer notification.
type targetPayload struct {
	TargetUserID string `json:"targetUserId"`
}

// Hub is the connection gateway: it owns the set of live clients,
// dispatches inbound events to the presence registry, message router
// and typing coordinator, and delivers outbound events to single
// connections or whole role sets.
type Hub struct {
	registry *presence.Registry
	history  *history.Store
	auth     *auth.Service

	router      *chat.Router
	broadcaster *chat.Broadcaster
	typing      *typing.Coordinator

	// clients maps connection ID to its live client
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub wires the gateway to the shared registries. typingIdle is the
// silence window after which a customer's typing indicator expires.
func NewHub(registry *presence.Registry, store *history.Store, authService *auth.Service, typingIdle time.Duration) *Hub {
	h := &Hub{
		registry: registry,
		history:  store,
		auth:     authService,
		clients:  make(map[string]*Client),
	}
	h.broadcaster = chat.NewBroadcaster(registry, h)
	h.router = chat.NewRouter(registry, store, h, h.broadcaster)
	h.typing = typing.NewCoordinator(typingIdle, h.onTypingTransition)
	return h
}

// Send delivers one event to one connection. Implements chat.Sender.
// Unknown connections and full buffers are quietly dropped: delivery is
// single-attempt, and a stale client must never block the caller.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(outboundEvent{Type: event, Payload: payload})
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal %s event: %v", event, err)
		return
	}

	select {
	case client.send <- data:
	default:
		// Client's buffer is full; drop the connection
		log.Printf("[WebSocket] Send buffer full for %s, dropping client", connID)
		h.remove(client)
	}
}

// add tracks a freshly upgraded connection.
func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	log.Printf("[WebSocket] Connection %s established (total: %d)", client.ID, h.clientCount())
}

// remove untracks a client and closes its outbound channel.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, tracked := h.clients[client.ID]
	delete(h.clients, client.ID)
	h.mu.Unlock()

	if tracked {
		client.closeSend()
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// disconnect handles a dropped connection: presence cleanup plus the
// appropriate notifications. Customers going away are announced to
// admins; an admin going away re-broadcasts the admin-online flag to
// every customer.
func (h *Hub) disconnect(client *Client) {
	h.remove(client)

	session, err := h.registry.Unregister(client.ID)
	if err != nil {
		if !errors.Is(err, presence.ErrNotFound) {
			log.Printf("[WebSocket] Unregister %s failed: %v", client.ID, err)
		}
		// The connection never joined; nothing to announce.
		return
	}

	h.typing.Forget(session.UserID)

	switch session.Role {
	case models.RoleCustomer:
		h.broadcaster.ToAdmins(chat.EventCustomerDisconnected, chat.PresenceEvent{
			User:      session,
			Timestamp: time.Now().UTC(),
		})
	case models.RoleAdmin:
		_, _, admins := h.registry.Counts()
		h.broadcaster.ToCustomers(chat.EventAdminStatus, chat.AdminStatusEvent{Online: admins > 0})
	}
}

// dispatch routes one inbound frame to its handler. Malformed frames
// and events from sessions of the wrong role are dropped without any
// response; routing failures never leak state back to the caller.
func (h *Hub) dispatch(client *Client, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("[WebSocket] Malformed frame from %s: %v", client.ID, err)
		return
	}

	switch event.Type {
	case eventJoin:
		h.handleJoin(client, event.Payload)
	case eventAdminConnect:
		h.handleAdminConnect(client, event.Payload)
	case eventMessage:
		h.handleMessage(client, event.Payload)
	case eventAdminMessage:
		h.handleAdminMessage(client, event.Payload)
	case eventTyping:
		h.handleTyping(client, true)
	case eventStopTyping:
		h.handleTyping(client, false)
	case eventAdminTyping:
		h.handleAdminTyping(client, event.Payload, chat.EventAdminTyping)
	case eventAdminStopTyping:
		h.handleAdminTyping(client, event.Payload, chat.EventAdminStopTyping)
	case eventGetActiveUsers:
		h.handleGetActiveUsers(client)
	case eventMessagesRead:
		h.handleMessagesRead(client)
	default:
		log.Printf("[WebSocket] Unknown event %q from %s", event.Type, client.ID)
	}
}

// handleJoin registers the session, replays the user's history to the
// joining connection, and announces presence.
func (h *Hub) handleJoin(client *Client, raw json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == "" {
		log.Printf("[WebSocket] Invalid join from %s", client.ID)
		return
	}

	role := models.RoleCustomer
	if payload.UserType == string(models.RoleAdmin) {
		role = models.RoleAdmin
	}

	session, err := h.registry.Register(client.ID, payload.UserID, role, payload.UserInfo)
	if err != nil {
		log.Printf("[WebSocket] Join for %s failed: %v", client.ID, err)
		return
	}

	// The conversation exists from the first join, even before the
	// first message.
	h.history.Touch(payload.UserID)
	h.Send(client.ID, chat.EventChatHistory, h.history.Get(payload.UserID))

	if role == models.RoleCustomer {
		h.broadcaster.ToAdmins(chat.EventCustomerConnected, chat.PresenceEvent{
			User:      session,
			Timestamp: time.Now().UTC(),
		})

		_, _, admins := h.registry.Counts()
		h.Send(client.ID, chat.EventAdminStatus, chat.AdminStatusEvent{Online: admins > 0})
	}
}

// handleAdminConnect upgrades an existing session to the admin role.
// The token must have been issued by the admin auth endpoint; an
// unverified token drops the upgrade silently.
func (h *Hub) handleAdminConnect(client *Client, raw json.RawMessage) {
	var payload adminConnectPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Printf("[WebSocket] Invalid admin_connect from %s", client.ID)
		return
	}

	if !h.auth.Verify(payload.Token) {
		log.Printf("[WebSocket] Rejected admin_connect from %s: unverified token", client.ID)
		return
	}
	if _, err := h.registry.LookupByConnection(client.ID); err != nil {
		log.Printf("[WebSocket] Rejected admin_connect from %s: no session", client.ID)
		return
	}

	h.registry.UpgradeRole(client.ID, models.RoleAdmin, payload.AdminID)
	log.Printf("[WebSocket] Admin %s connected on %s", payload.AdminID, client.ID)

	h.Send(client.ID, chat.EventActiveCustomers, h.registry.ListByRole(models.RoleCustomer))
	h.broadcaster.ToCustomers(chat.EventAdminStatus, chat.AdminStatusEvent{Online: true})
}

// handleMessage routes a plain message by the sender's role: customers
// fan out to admins, admins with a target reach that one customer.
func (h *Hub) handleMessage(client *Client, raw json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[WebSocket] Invalid message from %s", client.ID)
		return
	}

	session, err := h.registry.LookupByConnection(client.ID)
	if err != nil {
		return
	}

	if session.Role == models.RoleAdmin && msg.TargetUserID != "" {
		h.router.RouteAdminMessage(client.ID, msg)
		return
	}
	h.router.RouteCustomerMessage(client.ID, msg)
}

func (h *Hub) handleAdminMessage(client *Client, raw json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[WebSocket] Invalid admin_message from %s", client.ID)
		return
	}
	h.router.RouteAdminMessage(client.ID, msg)
}

// handleTyping feeds a customer's typing signal into the coordinator.
// Transitions come back through onTypingTransition; repeats within the
// idle window are absorbed by the coordinator.
func (h *Hub) handleTyping(client *Client, start bool) {
	session, err := h.registry.LookupByConnection(client.ID)
	if err != nil || session.Role != models.RoleCustomer {
		return
	}

	if start {
		h.typing.Start(session.UserID)
	} else {
		h.typing.Stop(session.UserID)
	}
}

// onTypingTransition fans a customer's typing edge out to all admins.
func (h *Hub) onTypingTransition(userID string, isTyping bool) {
	if isTyping {
		event := chat.TypingEvent{UserID: userID}
		if session, ok := h.registry.LookupCustomerByUserID(userID); ok {
			event.UserInfo = session.UserInfo
		}
		h.broadcaster.ToAdmins(chat.EventCustomerTyping, event)
		return
	}
	h.broadcaster.ToAdmins(chat.EventCustomerStopTyping, chat.TypingEvent{UserID: userID})
}

// handleAdminTyping relays an admin's typing indicator straight to the
// targeted customer. No server-side expiry here: the sending client is
// responsible for following up with admin_stop_typing.
func (h *Hub) handleAdminTyping(client *Client, raw json.RawMessage, outEvent string) {
	session, err := h.registry.LookupByConnection(client.ID)
	if err != nil || session.Role != models.RoleAdmin {
		return
	}

	var payload targetPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TargetUserID == "" {
		return
	}

	if customer, ok := h.registry.LookupCustomerByUserID(payload.TargetUserID); ok {
		h.Send(customer.ConnectionID, outEvent, nil)
	}
}

// handleGetActiveUsers returns the current customer list, admins only.
func (h *Hub) handleGetActiveUsers(client *Client) {
	session, err := h.registry.LookupByConnection(client.ID)
	if err != nil || session.Role != models.RoleAdmin {
		return
	}
	h.Send(client.ID, chat.EventActiveCustomers, h.registry.ListByRole(models.RoleCustomer))
}

// handleMessagesRead fans the read marker for the caller's thread out
// to admins. Read state is not persisted.
func (h *Hub) handleMessagesRead(client *Client) {
	session, err := h.registry.LookupByConnection(client.ID)
	if err != nil {
		return
	}
	h.broadcaster.ToAdmins(chat.EventMessagesRead, chat.MessagesReadEvent{
		UserID:    session.UserID,
		Timestamp: time.Now().UTC(),
	})
}
