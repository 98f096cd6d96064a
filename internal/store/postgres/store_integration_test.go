//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*SessionStore, *UserStore) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// a second run must be a no-op
	require.NoError(t, runMigrations(ctx, pool))

	return NewSessionStore(pool), NewUserStore(pool)
}

func TestIntegration_SessionsAndUsers(t *testing.T) {
	ctx := context.Background()
	sessions, users := setupPostgresContainer(t, ctx)

	user := &models.User{
		ID:           uuid.Must(uuid.NewV7()),
		RelationType: models.RelationTelegram,
		Relation:     "@settler",
		Name:         "Settler",
	}

	t.Run("create user", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, user))

		got, err := users.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, models.RelationTelegram, got.RelationType)
		require.Equal(t, "Settler", got.Name)
		require.Empty(t, got.Photo)
	})

	t.Run("duplicate relation", func(t *testing.T) {
		dup := *user
		dup.ID = uuid.Must(uuid.NewV7())
		require.ErrorIs(t, users.Create(ctx, &dup), store.ErrUserExists)
	})

	t.Run("update photo", func(t *testing.T) {
		require.NoError(t, users.UpdatePhoto(ctx, user.ID, []byte("png-bytes")))

		got, err := users.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, []byte("png-bytes"), got.Photo)

		require.ErrorIs(t, users.UpdatePhoto(ctx, uuid.New(), nil), store.ErrUserNotFound)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		session := &models.Session{
			Token:     models.NewSessionToken(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour),
			Device:    "integration",
		}
		require.NoError(t, sessions.Create(ctx, session))

		got, err := sessions.Get(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.UserID)
		require.Equal(t, "integration", got.Device)

		require.NoError(t, sessions.Delete(ctx, session.Token))
		_, err = sessions.Get(ctx, session.Token)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("expired sessions", func(t *testing.T) {
		expired := &models.Session{
			Token:     models.NewSessionToken(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, sessions.Create(ctx, expired))

		_, err := sessions.Get(ctx, expired.Token)
		require.ErrorIs(t, err, store.ErrSessionExpired)

		count, err := sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("session for unknown user", func(t *testing.T) {
		err := sessions.Create(ctx, &models.Session{
			Token:     models.NewSessionToken(),
			UserID:    uuid.New(),
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}
