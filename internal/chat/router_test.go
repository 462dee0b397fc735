package chat

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nvi-digital/livechat/internal/history"
	"github.com/nvi-digital/livechat/internal/models"
	"github.com/nvi-digital/livechat/internal/presence"
)

// fakeSender records every outbound send for assertions.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentEvent
}

type sentEvent struct {
	ConnID  string
	Event   string
	Payload any
}

func (f *fakeSender) Send(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{ConnID: connID, Event: event, Payload: payload})
}

func (f *fakeSender) events() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEvent, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) byEvent(event string) []sentEvent {
	var out []sentEvent
	for _, e := range f.events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestRouter(t *testing.T) (*Router, *presence.Registry, *history.Store, *fakeSender) {
	t.Helper()
	registry := presence.NewRegistry()
	store := history.NewStore(filepath.Join(t.TempDir(), "chat-history.json"), 100)
	sender := &fakeSender{}
	router := NewRouter(registry, store, sender, NewBroadcaster(registry, sender))
	return router, registry, store, sender
}

func TestCustomerMessageFansOutToAllAdmins(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)
	registry.Register("a2", "staff2", models.RoleAdmin, nil)

	router.RouteCustomerMessage("c1", models.Message{Body: "tour info please"})

	delivered := sender.byEvent(EventCustomerMessage)
	if len(delivered) != 2 {
		t.Fatalf("expected fan-out to 2 admins, got %d sends", len(delivered))
	}
	got := map[string]bool{delivered[0].ConnID: true, delivered[1].ConnID: true}
	if !got["a1"] || !got["a2"] {
		t.Errorf("expected delivery to a1 and a2, got %v", got)
	}

	payload, ok := delivered[0].Payload.(CustomerMessageEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", delivered[0].Payload)
	}
	if payload.FromUser.UserID != "u1" {
		t.Errorf("expected fromUser u1, got %s", payload.FromUser.UserID)
	}
	if payload.Body != "tour info please" {
		t.Errorf("unexpected body %q", payload.Body)
	}

	if store.Count("u1") != 1 {
		t.Errorf("expected 1 message in history, got %d", store.Count("u1"))
	}
}

func TestCustomerMessagePersistsWithNoAdminsConnected(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)

	router.RouteCustomerMessage("c1", models.Message{Body: "anyone?"})

	if store.Count("u1") != 1 {
		t.Error("persistence must not depend on admin availability")
	}
	if len(sender.events()) != 0 {
		t.Errorf("expected no deliveries, got %v", sender.events())
	}
}

func TestLateJoiningAdminGetsNoReplay(t *testing.T) {
	router, registry, _, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	router.RouteCustomerMessage("c1", models.Message{Body: "hello"})
	registry.Register("a2", "staff2", models.RoleAdmin, nil)

	for _, e := range sender.byEvent(EventCustomerMessage) {
		if e.ConnID == "a2" {
			t.Error("admin connecting after the send must not receive the message")
		}
	}
}

func TestCustomerMessageFromUnknownConnectionIsDropped(t *testing.T) {
	router, _, store, sender := newTestRouter(t)

	router.RouteCustomerMessage("ghost", models.Message{Body: "hi"})

	if len(sender.events()) != 0 {
		t.Error("nothing should be delivered for an unknown connection")
	}
	if store.Count("") != 0 {
		t.Error("nothing should be persisted for an unknown connection")
	}
}

func TestCustomerMessageFromAdminSessionIsDropped(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	router.RouteCustomerMessage("a1", models.Message{Body: "hi"})

	if len(sender.events()) != 0 || store.Count("staff1") != 0 {
		t.Error("customer routing must reject non-customer sessions")
	}
}

func TestRouterStampsTimestampAndID(t *testing.T) {
	router, registry, store, _ := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)

	forged := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	router.RouteCustomerMessage("c1", models.Message{Body: "hi", Timestamp: forged})

	stored := store.Get("u1")[0]
	if stored.Timestamp.Equal(forged) {
		t.Error("client-supplied timestamps must not be trusted")
	}
	if time.Since(stored.Timestamp) > time.Minute {
		t.Errorf("expected a fresh server timestamp, got %v", stored.Timestamp)
	}
	if stored.ID == "" {
		t.Error("router must generate an id when the client supplies none")
	}
	if stored.AuthorRole != models.AuthorUser {
		t.Errorf("expected author role user, got %s", stored.AuthorRole)
	}
}

func TestAdminMessageDeliveredAndAcknowledged(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	router.RouteAdminMessage("a1", models.Message{ID: "m1", Body: "hi", TargetUserID: "u1"})

	delivered := sender.byEvent(EventMessage)
	if len(delivered) != 1 || delivered[0].ConnID != "c1" {
		t.Fatalf("expected one delivery to c1, got %v", delivered)
	}
	msg, ok := delivered[0].Payload.(models.Message)
	if !ok {
		t.Fatalf("unexpected payload type %T", delivered[0].Payload)
	}
	if msg.UserID != "u1" || msg.AuthorRole != models.AuthorAdmin {
		t.Errorf("message must be threaded under the target customer: %+v", msg)
	}

	acks := sender.byEvent(EventMessageSent)
	if len(acks) != 1 || acks[0].ConnID != "a1" {
		t.Fatalf("expected one ack to the authoring admin, got %v", acks)
	}
	ack := acks[0].Payload.(MessageSentEvent)
	if !ack.Success || ack.MessageID != "m1" || ack.TargetUserID != "u1" {
		t.Errorf("unexpected ack %+v", ack)
	}

	if store.Count("u1") != 1 {
		t.Errorf("expected message persisted under target thread, got %d", store.Count("u1"))
	}
}

func TestAdminMessageToOfflineTargetPersistsWithoutDelivery(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	router.RouteAdminMessage("a1", models.Message{Body: "hi", TargetUserID: "u1"})

	if len(sender.events()) != 0 {
		t.Errorf("no delivery or ack should fire for an offline target, got %v", sender.events())
	}
	if store.Count("u1") != 1 {
		t.Error("the message must still be recorded for replay on reconnect")
	}
}

func TestAdminMessageFromCustomerSessionIsDropped(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("c2", "u2", models.RoleCustomer, nil)

	router.RouteAdminMessage("c1", models.Message{Body: "hi", TargetUserID: "u2"})

	if len(sender.events()) != 0 || store.Count("u2") != 0 {
		t.Error("admin routing must reject non-admin sessions")
	}
}

func TestAdminMessageWithoutTargetIsDropped(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	router.RouteAdminMessage("a1", models.Message{Body: "hi"})

	if len(sender.events()) != 0 {
		t.Error("untargeted admin message must be a no-op")
	}
	if store.Count("") != 0 {
		t.Error("untargeted admin message must not be persisted")
	}
}

func TestSimultaneousAdminRepliesBothRecordedInArrivalOrder(t *testing.T) {
	router, registry, store, sender := newTestRouter(t)
	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)
	registry.Register("a2", "staff2", models.RoleAdmin, nil)

	router.RouteAdminMessage("a1", models.Message{ID: "r1", Body: "first", TargetUserID: "u1"})
	router.RouteAdminMessage("a2", models.Message{ID: "r2", Body: "second", TargetUserID: "u1"})

	thread := store.Get("u1")
	if len(thread) != 2 {
		t.Fatalf("both replies must be recorded, got %d", len(thread))
	}
	if thread[0].ID != "r1" || thread[1].ID != "r2" {
		t.Errorf("replies must be kept in arrival order, got %s then %s", thread[0].ID, thread[1].ID)
	}

	delivered := sender.byEvent(EventMessage)
	if len(delivered) != 2 {
		t.Fatalf("both replies must be delivered, got %d", len(delivered))
	}
}

func TestBroadcasterSkipsOtherRoles(t *testing.T) {
	registry := presence.NewRegistry()
	sender := &fakeSender{}
	b := NewBroadcaster(registry, sender)

	registry.Register("c1", "u1", models.RoleCustomer, nil)
	registry.Register("a1", "staff1", models.RoleAdmin, nil)

	b.ToAdmins(EventMessagesRead, MessagesReadEvent{UserID: "u1"})
	b.ToCustomers(EventAdminStatus, AdminStatusEvent{Online: true})

	for _, e := range sender.events() {
		switch e.Event {
		case EventMessagesRead:
			if e.ConnID != "a1" {
				t.Errorf("admin broadcast leaked to %s", e.ConnID)
			}
		case EventAdminStatus:
			if e.ConnID != "c1" {
				t.Errorf("customer broadcast leaked to %s", e.ConnID)
			}
		}
	}
}
