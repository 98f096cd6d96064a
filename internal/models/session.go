package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SessionTokenLength is the length of the hex encoded session token.
const SessionTokenLength = 40

// Session is an authenticated device session. Clients present the token to
// the API to prove who they are.
type Session struct {
	Token  string    // 40 hex characters, the only value handed to the client
	UserID uuid.UUID // Who is logged in

	CreatedAt time.Time
	ExpiresAt time.Time

	// Device is a free form client description, truncated to 128 characters.
	Device string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// NewSessionToken returns a random 40 character session token.
func NewSessionToken() string {
	b := make([]byte, SessionTokenLength/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
