package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

func newSession(userID uuid.UUID, ttl time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{
		Token:     models.NewSessionToken(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Device:    "test-browser",
	}
}

func TestMemorySessionStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("live session", func(t *testing.T) {
		st := NewSessionStore()
		session := newSession(uuid.New(), time.Hour)
		require.NoError(t, st.Create(ctx, session))

		got, err := st.Get(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, session.UserID, got.UserID)
		require.Equal(t, "test-browser", got.Device)

		// returned value is a copy
		got.Device = "mutated"
		again, err := st.Get(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, "test-browser", again.Device)
	})

	t.Run("unknown token", func(t *testing.T) {
		st := NewSessionStore()
		_, err := st.Get(ctx, models.NewSessionToken())
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("expired session", func(t *testing.T) {
		st := NewSessionStore()
		session := newSession(uuid.New(), -time.Minute)
		require.NoError(t, st.Create(ctx, session))

		_, err := st.Get(ctx, session.Token)
		require.ErrorIs(t, err, store.ErrSessionExpired)
	})
}

func TestMemorySessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	userID := uuid.New()

	session := newSession(userID, time.Hour)
	require.NoError(t, st.Create(ctx, session))
	require.Equal(t, 1, st.SessionsForUser(userID))

	require.NoError(t, st.Delete(ctx, session.Token))
	require.Zero(t, st.SessionsForUser(userID))

	_, err := st.Get(ctx, session.Token)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	require.ErrorIs(t, st.Delete(ctx, session.Token), store.ErrSessionNotFound)
}

func TestMemorySessionStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	userID := uuid.New()

	live := newSession(userID, time.Hour)
	require.NoError(t, st.Create(ctx, live))
	for range 3 {
		require.NoError(t, st.Create(ctx, newSession(userID, -time.Second)))
	}
	require.Equal(t, 4, st.SessionsForUser(userID))

	count, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, 1, st.SessionsForUser(userID))

	_, err = st.Get(ctx, live.Token)
	require.NoError(t, err)
}

func TestNewSessionToken(t *testing.T) {
	a := models.NewSessionToken()
	require.Len(t, a, models.SessionTokenLength)
	require.NotEqual(t, a, models.NewSessionToken())
}
