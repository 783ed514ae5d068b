package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the audit trail of one chat session.
type SessionRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Room       string     `json:"room"`
	RemoteAddr string     `json:"remote_addr"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Store defines persistence operations used by the server.
type Store interface {
	Close() error
	Migrate(ctx context.Context) error

	RecordJoin(ctx context.Context, rec *SessionRecord) error
	RecordLeave(ctx context.Context, id string, leftAt time.Time, reason string) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)
}
