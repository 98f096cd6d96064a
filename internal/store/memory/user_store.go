package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

var _ store.UserStore = (*UserStore)(nil)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	mu sync.RWMutex

	users      map[uuid.UUID]*models.User
	byRelation map[string]uuid.UUID
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[uuid.UUID]*models.User),
		byRelation: make(map[string]uuid.UUID),
	}
}

// Create adds a user. The relation must be unique across users.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return store.ErrUserExists
	}
	if _, exists := s.byRelation[user.Relation]; exists {
		return store.ErrUserExists
	}

	clone := cloneUser(user)
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now

	s.users[user.ID] = clone
	s.byRelation[user.Relation] = user.ID

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(user), nil
}

// UpdatePhoto replaces the user's photo.
func (s *UserStore) UpdatePhoto(ctx context.Context, id uuid.UUID, photo []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.Photo = bytes.Clone(photo)
	user.UpdatedAt = time.Now()

	return nil
}

func cloneUser(u *models.User) *models.User {
	clone := *u
	clone.Photo = bytes.Clone(u.Photo)
	return &clone
}
