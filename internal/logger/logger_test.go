package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var sawLogger bool
	handler := NewRequests(logger).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	r := httptest.NewRequest(http.MethodGet, "/public/app.js", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.True(t, sawLogger)
	require.Equal(t, http.StatusTeapot, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http request", entry["message"])
	require.Equal(t, "203.0.113.7", entry["addr"])
	require.Equal(t, "/public/app.js", entry["path"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
	require.EqualValues(t, 5, entry["bytes"])
	require.NotEmpty(t, entry["request_id"])
}

func TestRequestsServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRequests(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/check_token", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
}

// serveLogged runs handler behind Requests on a real server and returns the
// access log entry once the handler has returned.
func serveLogged(t *testing.T, handler http.HandlerFunc, do func(url string)) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	done := make(chan struct{})
	wrapped := NewRequests(zerolog.New(&buf)).Wrap(handler)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		wrapped.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	do(srv.URL)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return")
	}

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestsHijack(t *testing.T) {
	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)

		conn, rw, err := hj.Hijack()
		require.NoError(t, err)
		defer conn.Close()

		_, _ = rw.WriteString("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n")
		_ = rw.Flush()
	}, func(url string) {
		conn, err := net.Dial("tcp", strings.TrimPrefix(url, "http://"))
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("GET /ws HTTP/1.1\r\nHost: relay\r\n\r\n"))
		require.NoError(t, err)

		resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	})

	require.Equal(t, true, entry["hijacked"])
	require.EqualValues(t, http.StatusSwitchingProtocols, entry["status"])
}

func TestRequestsKeepsReaderFrom(t *testing.T) {
	payload := strings.Repeat("settlers", 512)

	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(io.ReaderFrom)
		require.True(t, ok)

		_, err := io.Copy(w, strings.NewReader(payload))
		require.NoError(t, err)
	}, func(url string) {
		resp, err := http.Get(url + "/public/app.js")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, payload, string(body))
	})

	require.EqualValues(t, http.StatusOK, entry["status"])
	require.EqualValues(t, len(payload), entry["bytes"])
	require.Equal(t, false, entry["hijacked"])
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	std := StdLogger(zerolog.New(&buf), zerolog.WarnLevel)

	std.Printf("http: TLS handshake error from %s: %s", "127.0.0.1:1234", "EOF")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "http: TLS handshake error from 127.0.0.1:1234: EOF", entry["message"])
}
