package chat

import (
	"github.com/nvi-digital/livechat/internal/models"
	"github.com/nvi-digital/livechat/internal/presence"
)

// Sender delivers one outbound event to a live connection. Delivery is
// single-attempt and best-effort; the gateway implements it.
type Sender interface {
	Send(connID, event string, payload any)
}

// Broadcaster fans events out to every connected session of a role.
// A stale or slow connection never blocks delivery to the others.
type Broadcaster struct {
	registry *presence.Registry
	sender   Sender
}

// NewBroadcaster creates a broadcaster over the given registry and sender.
func NewBroadcaster(registry *presence.Registry, sender Sender) *Broadcaster {
	return &Broadcaster{registry: registry, sender: sender}
}

// ToAdmins delivers an event to every currently connected admin session.
func (b *Broadcaster) ToAdmins(event string, payload any) {
	for _, admin := range b.registry.ListByRole(models.RoleAdmin) {
		b.sender.Send(admin.ConnectionID, event, payload)
	}
}

// ToCustomers delivers an event to every currently connected customer
// session, used to flip the admin-online flag.
func (b *Broadcaster) ToCustomers(event string, payload any) {
	for _, customer := range b.registry.ListByRole(models.RoleCustomer) {
		b.sender.Send(customer.ConnectionID, event, payload)
	}
}
