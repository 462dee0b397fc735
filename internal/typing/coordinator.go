package typing

import (
	"sync"
	"time"
)

// NotifyFunc receives typing transitions: typing=true on the idle-to-typing
// edge, typing=false on the typing-to-idle edge. Called once per transition.
type NotifyFunc func(userID string, typing bool)

// Coordinator tracks which customers are currently composing a message.
// State is ephemeral: a typing indicator expires automatically after the
// idle window unless renewed, and is discarded without notice on
// disconnect. Admin-to-customer typing indicators do not pass through
// here; they are direct single-target notifications with client-side
// expiry.
type Coordinator struct {
	// timers holds one pending expiry timer per currently-typing user.
	// Presence in this map is what "typing" means.
	timers map[string]*time.Timer

	idle   time.Duration
	notify NotifyFunc
	mu     sync.Mutex
}

// NewCoordinator creates a coordinator that expires typing state after
// idle silence and reports transitions through notify.
func NewCoordinator(idle time.Duration, notify NotifyFunc) *Coordinator {
	return &Coordinator{
		timers: make(map[string]*time.Timer),
		idle:   idle,
		notify: notify,
	}
}

// Start records that a user began (or continues) typing. Only the first
// call notifies; repeats merely push the expiry window forward.
func (c *Coordinator) Start(userID string) {
	c.mu.Lock()

	if old, typing := c.timers[userID]; typing {
		// Renewed activity: replace the timer instead of resetting it so
		// an already-fired timer waiting on the lock can't emit a stale stop.
		old.Stop()
		c.timers[userID] = c.newExpiry(userID)
		c.mu.Unlock()
		return
	}

	c.timers[userID] = c.newExpiry(userID)
	c.mu.Unlock()
	c.notify(userID, true)
}

// Stop records an explicit end of typing. A no-op unless the user was
// typing, so an explicit stop after an expiry never double-notifies.
func (c *Coordinator) Stop(userID string) {
	c.mu.Lock()
	timer, typing := c.timers[userID]
	if !typing {
		c.mu.Unlock()
		return
	}
	timer.Stop()
	delete(c.timers, userID)
	c.mu.Unlock()
	c.notify(userID, false)
}

// Forget discards a user's typing state without notifying anyone.
// Called when the session disconnects.
func (c *Coordinator) Forget(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, typing := c.timers[userID]; typing {
		timer.Stop()
		delete(c.timers, userID)
	}
}

// IsTyping reports whether a user is currently marked as typing.
func (c *Coordinator) IsTyping(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, typing := c.timers[userID]
	return typing
}

// newExpiry arms the idle-timeout transition for a user.
// Caller must hold the lock.
func (c *Coordinator) newExpiry(userID string) *time.Timer {
	var timer *time.Timer
	timer = time.AfterFunc(c.idle, func() {
		c.mu.Lock()
		// Only expire if this exact timer is still the active one; a
		// renewed Start or explicit Stop has already superseded it otherwise.
		if current, typing := c.timers[userID]; !typing || current != timer {
			c.mu.Unlock()
			return
		}
		delete(c.timers, userID)
		c.mu.Unlock()
		c.notify(userID, false)
	})
	return timer
}
