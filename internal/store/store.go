package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/settlers/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
)

// SessionStore manages authenticated device sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error

	// Get returns ErrSessionNotFound for unknown tokens and ErrSessionExpired
	// for sessions past their expiry.
	Get(ctx context.Context, token string) (*models.Session, error)

	Delete(ctx context.Context, token string) error

	// DeleteExpired removes every expired session, returning how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// UserStore manages player accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePhoto(ctx context.Context, id uuid.UUID, photo []byte) error
}
