package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

var _ store.UserStore = (*UserStore)(nil)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Create inserts a user.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, relation_type, relation, name, photo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		int16(user.RelationType),
		user.Relation,
		user.Name,
		user.Photo,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, relation_type, relation, name, photo, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var (
		user         models.User
		relationType int16
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&relationType,
		&user.Relation,
		&user.Name,
		&user.Photo,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}

	user.RelationType = models.RelationType(relationType)
	return &user, nil
}

// UpdatePhoto replaces the user's photo.
func (s *UserStore) UpdatePhoto(ctx context.Context, id uuid.UUID, photo []byte) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE users SET photo = $2, updated_at = now() WHERE id = $1`, id, photo)
	if err != nil {
		return fmt.Errorf("failed to update user photo: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}
