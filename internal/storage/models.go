package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Turn roles.
const (
	RoleStudent   = "student"
	RoleAssistant = "assistant"
)

// Session is one intake conversation. ProfileJSON holds the encoded profile.
type Session struct {
	ID            string
	ProfileJSON   string
	LastAudioHash string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Turn is one message in a session's transcript. Seq is assigned by the store
// and increases by one per appended turn.
type Turn struct {
	ID        string
	SessionID string
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}
