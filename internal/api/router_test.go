package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store/memory"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	router   *Router
	sessions *memory.SessionStore
	users    *memory.UserStore
	user     *models.User
	live     *models.Session
	expired  *models.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		sessions: memory.NewSessionStore(),
		users:    memory.NewUserStore(),
		user: &models.User{
			ID:       uuid.Must(uuid.NewV7()),
			Relation: "player@example.com",
			Name:     "Player",
		},
	}
	require.NoError(t, f.users.Create(ctx, f.user))

	f.live = &models.Session{Token: models.NewSessionToken(), UserID: f.user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	f.expired = &models.Session{Token: models.NewSessionToken(), UserID: f.user.ID, ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, f.sessions.Create(ctx, f.live))
	require.NoError(t, f.sessions.Create(ctx, f.expired))

	f.router = NewRouter(Deps{Sessions: f.sessions, Users: f.users})
	return f
}

func (f *fixture) dispatch(t *testing.T, name string, body []byte) (*httptest.ResponseRecorder, []byte) {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/api/"+name, bytes.NewReader(body))
	w := httptest.NewRecorder()
	f.router.Dispatch(r.Context(), name, r).Write(w)

	out, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return w, out
}

func TestRoutes(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{RouteCheckToken, RouteCheckTokenTest, RouteUploadPicture}, f.router.Routes())
}

func TestDispatchCheckToken(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "live session", token: f.live.Token, want: true},
		{name: "expired session", token: f.expired.Token, want: false},
		{name: "unknown token", token: models.NewSessionToken(), want: false},
		{name: "malformed token", token: "short", want: false},
		{name: "empty token", token: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.dispatch(t, RouteCheckToken, (&CheckAuthTokenParams{Token: tt.token}).Marshal())
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, ContentType, w.Header().Get("Content-Type"))

			var result CheckAuthTokenResult
			require.NoError(t, result.Unmarshal(body))
			require.Equal(t, tt.want, result.Result)
		})
	}
}

func TestDispatchCheckTokenTest(t *testing.T) {
	f := newFixture(t)

	w, body := f.dispatch(t, RouteCheckTokenTest, (&CheckAuthTokenParams{Token: "anything"}).Marshal())
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []byte{0x08, 0x01}, body)
}

func TestDispatchErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown route", func(t *testing.T) {
		w, body := f.dispatch(t, "no_such_route", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "Not Found", string(body))
	})

	t.Run("malformed body", func(t *testing.T) {
		w, body := f.dispatch(t, RouteCheckToken, []byte{0x0a, 0x05, 'a'})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "Bad Request", string(body))
	})

	t.Run("body over api ceiling", func(t *testing.T) {
		w, _ := f.dispatch(t, RouteCheckToken, bytes.Repeat([]byte{0}, MaxAPIBodySize+1))
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("body at api ceiling is read", func(t *testing.T) {
		params := (&CheckAuthTokenParams{Token: string(bytes.Repeat([]byte{'a'}, MaxAPIBodySize-3))}).Marshal()
		require.Len(t, params, MaxAPIBodySize)

		w, _ := f.dispatch(t, RouteCheckTokenTest, params)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("custom ceiling", func(t *testing.T) {
		rt := NewRouter(Deps{Sessions: f.sessions, Users: f.users}, WithMaxBodySize(4))
		r := httptest.NewRequest(http.MethodPost, "/api/check_token_test", bytes.NewReader([]byte{0x0a, 0x03, 'a', 'b', 'c'}))
		require.Equal(t, http.StatusRequestEntityTooLarge, rt.Dispatch(r.Context(), RouteCheckTokenTest, r).Status)
	})
}

func TestDispatchUploadPicture(t *testing.T) {
	f := newFixture(t)

	t.Run("exempt from api ceiling", func(t *testing.T) {
		picture := append(bytes.Clone(pngHeader), bytes.Repeat([]byte{0x42}, 4096)...)
		w, body := f.dispatch(t, RouteUploadPicture, (&UploadPictureParams{Token: f.live.Token, Picture: picture}).Marshal())
		require.Equal(t, http.StatusOK, w.Code)

		var result UploadPictureResult
		require.NoError(t, result.Unmarshal(body))
		require.True(t, result.Result)

		user, err := f.users.Get(context.Background(), f.user.ID)
		require.NoError(t, err)
		require.Equal(t, picture, user.Photo)
	})

	t.Run("expired session", func(t *testing.T) {
		w, body := f.dispatch(t, RouteUploadPicture, (&UploadPictureParams{Token: f.expired.Token, Picture: pngHeader}).Marshal())
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, body)
	})

	t.Run("not an image", func(t *testing.T) {
		w, body := f.dispatch(t, RouteUploadPicture, (&UploadPictureParams{Token: f.live.Token, Picture: []byte("hello")}).Marshal())
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, body)
	})
}

func TestDispatchMaxBytesReader(t *testing.T) {
	f := newFixture(t)

	// the declared length passes but the front end's reader cuts the body short
	r := httptest.NewRequest(http.MethodPost, "/api/upload_picture", bytes.NewReader(bytes.Repeat([]byte{1}, 64)))
	w := httptest.NewRecorder()
	r.Body = http.MaxBytesReader(w, r.Body, 16)

	require.Equal(t, http.StatusRequestEntityTooLarge, f.router.Dispatch(r.Context(), RouteUploadPicture, r).Status)
}
