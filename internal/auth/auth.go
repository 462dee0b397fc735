package auth

import (
	"sync"

	"github.com/google/uuid"
)

// Service authenticates admins against the shared secret and tracks the
// session tokens it has issued. The websocket gateway verifies a token
// before upgrading any session to the admin role, so a bare adminId on
// the socket is never enough.
type Service struct {
	password string

	// tokens holds every token issued this process lifetime
	tokens map[string]bool
	mu     sync.Mutex
}

// NewService creates an auth service with the given shared admin secret.
func NewService(password string) *Service {
	return &Service{
		password: password,
		tokens:   make(map[string]bool),
	}
}

// Authenticate checks the submitted password and, on success, issues an
// opaque session token.
func (s *Service) Authenticate(password string) (string, bool) {
	if password != s.password {
		return "", false
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.tokens[token] = true
	s.mu.Unlock()
	return token, true
}

// Verify reports whether a token was issued by this service.
func (s *Service) Verify(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}
