package chat

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nvi-digital/livechat/internal/history"
	"github.com/nvi-digital/livechat/internal/models"
	"github.com/nvi-digital/livechat/internal/presence"
)

// Router applies the role-based forwarding rules: customer messages fan
// out to every admin, admin messages go to one targeted customer. Every
// routed message is written through to the history store before
// delivery, so persistence never depends on anyone being online.
//
// Events from sessions of the wrong role, or addressed to unknown
// targets, are dropped without any response to the sender; routing
// failures must not leak registry state to unauthenticated actors.
type Router struct {
	registry    *presence.Registry
	history     *history.Store
	sender      Sender
	broadcaster *Broadcaster
}

// NewRouter creates a message router.
func NewRouter(registry *presence.Registry, store *history.Store, sender Sender, broadcaster *Broadcaster) *Router {
	return &Router{
		registry:    registry,
		history:     store,
		sender:      sender,
		broadcaster: broadcaster,
	}
}

// RouteCustomerMessage stamps, persists and fans a customer message out
// to all connected admins. Messages from non-customer sessions are
// dropped silently.
func (r *Router) RouteCustomerMessage(connID string, msg models.Message) {
	session, err := r.registry.LookupByConnection(connID)
	if err != nil || session.Role != models.RoleCustomer {
		log.Printf("[Router] Dropping message from %s: not a customer session", connID)
		return
	}

	msg = r.stamp(msg, session.UserID, models.AuthorUser)
	r.history.Append(session.UserID, msg)

	r.broadcaster.ToAdmins(EventCustomerMessage, CustomerMessageEvent{
		Message:  msg,
		FromUser: session,
	})
}

// RouteAdminMessage stamps and persists an admin message under the
// target customer's thread, delivers it to that customer's connection
// if one exists, and acknowledges delivery to the authoring admin.
//
// An offline target still gets the message recorded (it shows up in the
// replayed history on the customer's next join); only live delivery and
// the acknowledgment are skipped.
func (r *Router) RouteAdminMessage(connID string, msg models.Message) {
	session, err := r.registry.LookupByConnection(connID)
	if err != nil || session.Role != models.RoleAdmin {
		log.Printf("[Router] Dropping admin message from %s: not an admin session", connID)
		return
	}
	if msg.TargetUserID == "" {
		log.Printf("[Router] Dropping admin message from %s: no target user", connID)
		return
	}

	target := msg.TargetUserID
	msg = r.stamp(msg, target, models.AuthorAdmin)
	r.history.Append(target, msg)

	customer, online := r.registry.LookupCustomerByUserID(target)
	if !online {
		log.Printf("[Router] Target %s offline, message %s recorded for replay", target, msg.ID)
		return
	}

	r.sender.Send(customer.ConnectionID, EventMessage, msg)
	r.sender.Send(connID, EventMessageSent, MessageSentEvent{
		Success:      true,
		TargetUserID: target,
		MessageID:    msg.ID,
	})
}

// stamp fills in the router-owned fields: thread key, author role, a
// server-side timestamp (client clocks are not trusted) and an id if
// the client did not supply one.
func (r *Router) stamp(msg models.Message, userID string, author models.AuthorRole) models.Message {
	msg.UserID = userID
	msg.AuthorRole = author
	msg.Timestamp = time.Now().UTC()
	msg.TargetUserID = ""
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	return msg
}
