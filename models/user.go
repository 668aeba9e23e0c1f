package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated client account.
type User struct {
	ID           uuid.UUID
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// MatchBinding ties a user to the team slot it claimed in a match. A
// reconnecting caller is recognized by this row, never by team-name string.
type MatchBinding struct {
	UserID    uuid.UUID
	MatchID   uuid.UUID
	Side      Side
	CreatedAt time.Time
}
