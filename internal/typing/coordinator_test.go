package typing

import (
	"sync"
	"testing"
	"time"
)

// recorder collects typing transitions in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) notify(userID string, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typing)
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.events))
	copy(out, r.events)
	return out
}

const testIdle = 50 * time.Millisecond

func TestStartNotifiesOnce(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	c.Start("u1")
	c.Start("u1")

	events := rec.snapshot()
	if len(events) != 1 || !events[0] {
		t.Fatalf("expected exactly one start transition, got %v", events)
	}
	if !c.IsTyping("u1") {
		t.Error("user should still be typing")
	}
}

func TestExplicitStopCancelsTimer(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	c.Stop("u1")

	// Wait past the idle window: the cancelled timer must not fire a
	// duplicate stop.
	time.Sleep(3 * testIdle)

	events := rec.snapshot()
	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("expected [start stop], got %v", events)
	}
	if c.IsTyping("u1") {
		t.Error("user should be idle after explicit stop")
	}
}

func TestIdleExpiryFiresExactlyOneStop(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	time.Sleep(3 * testIdle)

	events := rec.snapshot()
	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("expected [start stop] from expiry, got %v", events)
	}
	if c.IsTyping("u1") {
		t.Error("typing state should be gone after expiry")
	}

	// A late explicit stop after expiry must not notify again.
	c.Stop("u1")
	if got := rec.snapshot(); len(got) != 2 {
		t.Fatalf("stop after expiry should be a no-op, got %v", got)
	}
}

func TestRenewedStartPushesExpiryForward(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	// Keep renewing within the idle window; no stop should fire meanwhile.
	for i := 0; i < 4; i++ {
		time.Sleep(testIdle / 2)
		c.Start("u1")
	}

	if events := rec.snapshot(); len(events) != 1 {
		t.Fatalf("expected only the initial start while renewing, got %v", events)
	}

	// Now go silent and let it expire.
	time.Sleep(3 * testIdle)
	events := rec.snapshot()
	if len(events) != 2 || events[1] {
		t.Fatalf("expected a single stop after silence, got %v", events)
	}
}

func TestForgetIsSilent(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	c.Forget("u1")
	time.Sleep(3 * testIdle)

	events := rec.snapshot()
	if len(events) != 1 || !events[0] {
		t.Fatalf("Forget must discard state without notifying, got %v", events)
	}
	if c.IsTyping("u1") {
		t.Error("user should not be typing after Forget")
	}
}

func TestUsersAreIndependent(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(testIdle, rec.notify)

	c.Start("u1")
	c.Start("u2")
	c.Stop("u1")

	if !c.IsTyping("u2") {
		t.Error("stopping u1 must not affect u2")
	}
	if c.IsTyping("u1") {
		t.Error("u1 should be idle")
	}
}
