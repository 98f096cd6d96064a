package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for development and tests - data is lost on restart.
type SessionStore struct {
	mu sync.RWMutex

	sessions       map[string]*models.Session // token -> Session
	sessionsByUser map[uuid.UUID][]string     // user_id -> []token
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:       make(map[string]*models.Session),
		sessionsByUser: make(map[uuid.UUID][]string),
	}
}

// Create stores a session, replacing any existing session with the same token.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.Token]; ok {
		s.removeFromUserIndex(existing.UserID, existing.Token)
	}

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.Token] = &clone
	s.sessionsByUser[session.UserID] = append(s.sessionsByUser[session.UserID], session.Token)

	return nil
}

// Get retrieves a session by token.
func (s *SessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[token]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	clone := *session
	return &clone, nil
}

// Delete deletes a session by token (logout).
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[token]
	if !exists {
		return store.ErrSessionNotFound
	}

	s.removeFromUserIndex(session.UserID, token)
	delete(s.sessions, token)

	return nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			s.removeFromUserIndex(session.UserID, token)
			delete(s.sessions, token)
			count++
		}
	}

	return count, nil
}

// SessionsForUser returns the number of live sessions held by a user.
func (s *SessionStore) SessionsForUser(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessionsByUser[userID])
}

func (s *SessionStore) removeFromUserIndex(userID uuid.UUID, token string) {
	tokens := s.sessionsByUser[userID]
	for i, t := range tokens {
		if t == token {
			s.sessionsByUser[userID] = append(tokens[:i], tokens[i+1:]...)
			break
		}
	}
	if len(s.sessionsByUser[userID]) == 0 {
		delete(s.sessionsByUser, userID)
	}
}
