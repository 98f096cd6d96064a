package relay

import (
	"crypto/sha1" //nolint:gosec // mandated by RFC 6455
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProtocolName is the Upgrade token the relay accepts.
const ProtocolName = "websocket"

// ProtocolVersion is the only Sec-WebSocket-Version the relay speaks.
const ProtocolVersion = "13"

// acceptGUID is appended to the client key before hashing (RFC 6455 section 4.2.2).
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrBadHandshake wraps every reason a relay upgrade request is refused.
var ErrBadHandshake = errors.New("bad relay handshake")

// AcceptKey derives the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateHandshake checks that r is a well formed relay upgrade request and
// returns the accept token the response must carry.
func ValidateHandshake(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", fmt.Errorf("%w: method %s", ErrBadHandshake, r.Method)
	}

	if r.ProtoMajor != 1 || r.ProtoMinor != 1 {
		return "", fmt.Errorf("%w: protocol %s", ErrBadHandshake, r.Proto)
	}

	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", fmt.Errorf("%w: missing Sec-WebSocket-Key", ErrBadHandshake)
	}

	if !headerHasToken(r.Header.Values("Connection"), "upgrade") {
		return "", fmt.Errorf("%w: Connection header lacks upgrade", ErrBadHandshake)
	}

	if !strings.EqualFold(r.Header.Get("Upgrade"), ProtocolName) {
		return "", fmt.Errorf("%w: Upgrade header %q", ErrBadHandshake, r.Header.Get("Upgrade"))
	}

	if r.Header.Get("Sec-WebSocket-Version") != ProtocolVersion {
		return "", fmt.Errorf("%w: version %q", ErrBadHandshake, r.Header.Get("Sec-WebSocket-Version"))
	}

	return AcceptKey(key), nil
}

// headerHasToken reports whether any of the comma or space separated tokens
// in values equals token, ignoring case.
func headerHasToken(values []string, token string) bool {
	for _, v := range values {
		fields := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, f := range fields {
			if strings.EqualFold(f, token) {
				return true
			}
		}
	}
	return false
}
