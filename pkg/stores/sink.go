package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/o3go/o3go/pkg/command"
)

// TranscriptSink appends a session's invocations to the store. It
// implements dispatch.Sink.
type TranscriptSink struct {
	store     Store
	sessionID string
}

// NewTranscriptSink returns a sink writing to the given session, which must
// already exist.
func NewTranscriptSink(store Store, sessionID string) *TranscriptSink {
	return &TranscriptSink{store: store, sessionID: sessionID}
}

// SessionID returns the session the sink writes to.
func (s *TranscriptSink) SessionID() string { return s.sessionID }

// Append implements dispatch.Sink.
func (s *TranscriptSink) Append(ctx context.Context, inv command.Invocation, line string) error {
	err := s.store.AppendInvocation(ctx, &Invocation{
		SessionID: s.sessionID,
		Seq:       inv.Seq,
		Command:   inv.Command,
		OpType:    inv.OpType,
		Category:  inv.Category.String(),
		Tag:       inv.Tag,
		Line:      line,
	})
	if err != nil {
		return fmt.Errorf("session %s seq %d: %w", s.sessionID, inv.Seq, err)
	}
	return nil
}

// StartSession creates the session record and returns a sink bound to it.
// An empty ID is generated; pass the ID to command.WithID so the session
// and its record agree.
func StartSession(ctx context.Context, store Store, session *Session) (*TranscriptSink, error) {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if err := store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return NewTranscriptSink(store, session.ID), nil
}
