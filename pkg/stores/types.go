package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionStatus represents the lifecycle of a recorded session
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
	SessionStatusFailed SessionStatus = "failed"
)

// Session is one recorded modelling session
type Session struct {
	ID         string        `json:"id"`
	Backend    string        `json:"backend"`
	Dimensions int           `json:"ndm"`
	DOFPerNode int           `json:"ndf"`
	Source     string        `json:"source"` // script or transcript the session ran
	Status     SessionStatus `json:"status"`
	Error      *string       `json:"error,omitempty"`
	Commands   int           `json:"commands"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Invocation is one emitted command of a session
type Invocation struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Command   string    `json:"command"`
	OpType    string    `json:"op_type,omitempty"`
	Category  string    `json:"category"`
	Tag       int       `json:"tag,omitempty"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Session operations
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status SessionStatus, errMsg *string) error
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Invocation operations
	AppendInvocation(ctx context.Context, inv *Invocation) error
	ListInvocations(ctx context.Context, sessionID string) ([]*Invocation, error)
	Lines(ctx context.Context, sessionID string) ([]string, error)
}
