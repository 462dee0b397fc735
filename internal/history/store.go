package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nvi-digital/livechat/internal/models"
)

// PresenceSource resolves whether a customer is currently connected.
// Satisfied by the presence registry.
type PresenceSource interface {
	LookupCustomerByUserID(userID string) (models.Session, bool)
}

// Store keeps every customer's conversation thread in memory, capped to
// the most recent messages per user, with a periodic durable snapshot.
// The in-memory state is authoritative; the snapshot file is best-effort
// (a crash between snapshots loses messages received since the last one).
type Store struct {
	// messages stores each user's thread: userID -> []Message
	messages map[string][]models.Message

	file  string
	limit int
	mu    sync.RWMutex
}

// NewStore creates a history store that snapshots to the given file and
// retains at most limit messages per user.
func NewStore(file string, limit int) *Store {
	return &Store{
		messages: make(map[string][]models.Message),
		file:     file,
		limit:    limit,
	}
}

// Touch creates an empty thread for a user if none exists yet.
// Called on first join so the conversation shows up for admins even
// before the customer writes anything.
func (s *Store) Touch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[userID]; !exists {
		s.messages[userID] = []models.Message{}
	}
}

// Append adds a message to a user's thread, evicting the oldest entries
// once the per-user cap is exceeded. It never fails.
func (s *Store) Append(userID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := append(s.messages[userID], msg)
	if len(thread) > s.limit {
		thread = thread[len(thread)-s.limit:]
	}
	s.messages[userID] = thread
}

// Get returns a copy of a user's thread in insertion order.
// Unknown users yield an empty slice, never an error.
func (s *Store) Get(userID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread := s.messages[userID]
	result := make([]models.Message, len(thread))
	copy(result, thread)
	return result
}

// Count returns the number of retained messages for a user.
func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[userID])
}

// Snapshot rewrites the durable image wholesale from a point-in-time
// copy of the store. Failures are returned for logging but leave the
// in-memory state untouched and authoritative.
func (s *Store) Snapshot() error {
	s.mu.RLock()
	image := make(map[string][]models.Message, len(s.messages))
	for userID, thread := range s.messages {
		copied := make([]models.Message, len(thread))
		copy(copied, thread)
		image[userID] = copied
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(image, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// Write to a temp file first so a crash mid-write can't corrupt
	// the previous snapshot.
	tmp := s.file + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.file); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Restore loads the durable image written by a previous run.
// A missing or corrupt file means start empty, not an error.
func (s *Store) Restore() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[History] Could not read snapshot %s: %v", s.file, err)
		}
		return
	}

	var image map[string][]models.Message
	if err := json.Unmarshal(data, &image); err != nil {
		log.Printf("[History] Corrupt snapshot %s, starting empty: %v", s.file, err)
		return
	}

	s.mu.Lock()
	s.messages = image
	if s.messages == nil {
		s.messages = make(map[string][]models.Message)
	}
	s.mu.Unlock()

	log.Printf("[History] Restored %d conversations from %s", len(image), s.file)
}

// Conversations summarizes every known thread for the admin dashboard,
// sorted by most recent message first. Threads without any message sort
// last.
func (s *Store) Conversations(presence PresenceSource) []models.Conversation {
	s.mu.RLock()
	conversations := make([]models.Conversation, 0, len(s.messages))
	for userID, thread := range s.messages {
		conv := models.Conversation{
			UserID:       userID,
			LastMessage:  "No messages",
			MessageCount: len(thread),
		}
		if len(thread) > 0 {
			last := thread[len(thread)-1]
			conv.LastMessage = last.Body
			ts := last.Timestamp
			conv.LastMessageTime = &ts
		}
		conversations = append(conversations, conv)
	}
	s.mu.RUnlock()

	for i := range conversations {
		if session, ok := presence.LookupCustomerByUserID(conversations[i].UserID); ok {
			conversations[i].IsOnline = true
			conversations[i].UserInfo = session.UserInfo
		}
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessageTime, conversations[j].LastMessageTime
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	return conversations
}
