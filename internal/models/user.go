package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationType identifies how a user proved ownership of their account.
type RelationType uint8

const (
	RelationEmail    RelationType = 0
	RelationTelegram RelationType = 1
)

func (r RelationType) String() string {
	switch r {
	case RelationEmail:
		return "email"
	case RelationTelegram:
		return "telegram"
	default:
		return fmt.Sprintf("relation(%d)", uint8(r))
	}
}

// User is a player account.
type User struct {
	ID           uuid.UUID // UUIDv7
	RelationType RelationType
	Relation     string // email address or telegram handle, unique
	Name         string
	Photo        []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}
