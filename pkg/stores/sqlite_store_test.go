package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStoreLifecycle tests database initialization, migration and closure
// on a file database
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "o3.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migration %d failed: %v", i, err)
		}
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Errorf("expected error for empty path")
	}
}

// TestSessionCRUD tests session operations
func TestSessionCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &Session{ID: "s-1", Backend: "record", Dimensions: 2, DOFPerNode: 3, Source: "column.star"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := store.CreateSession(ctx, &Session{ID: "s-1", Backend: "record", Dimensions: 2, DOFPerNode: 3}); err == nil {
		t.Errorf("expected duplicate id to fail")
	}

	got, err := store.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.Status != SessionStatusOpen || got.DOFPerNode != 3 || got.Source != "column.star" || got.Commands != 0 {
		t.Errorf("unexpected session: %+v", got)
	}

	msg := "node with tag 9 not found"
	if err := store.UpdateSessionStatus(ctx, "s-1", SessionStatusFailed, &msg); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, _ = store.GetSession(ctx, "s-1")
	if got.Status != SessionStatusFailed || got.Error == nil || *got.Error != msg {
		t.Errorf("status not updated: %+v", got)
	}

	if err := store.CreateSession(ctx, &Session{ID: "s-2", Backend: "live", Dimensions: 3, DOFPerNode: 6}); err != nil {
		t.Fatalf("failed to create second session: %v", err)
	}
	list, err := store.ListSessions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(list))
	}
	if list, _ := store.ListSessions(ctx, 1, 1); len(list) != 1 {
		t.Errorf("pagination returned %d sessions", len(list))
	}

	if err := store.DeleteSession(ctx, "s-2"); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}
	for _, op := range []func() error{
		func() error { _, err := store.GetSession(ctx, "s-2"); return err },
		func() error { return store.DeleteSession(ctx, "s-2") },
		func() error { return store.UpdateSessionStatus(ctx, "s-2", SessionStatusClosed, nil) },
		func() error { _, err := store.Lines(ctx, "s-2"); return err },
	} {
		if err := op(); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	}
}

type def struct {
	schema *command.Schema
	vals   command.Values
}

func (d def) Schema() *command.Schema { return d.schema }
func (d def) Values() command.Values  { return d.vals }

var nodeSchema = command.MustSchema(command.CategoryNode, "", "",
	command.Packet("coords", command.TypeFloat),
)

// TestTranscriptSink tests recording a session into the store
func TestTranscriptSink(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sink, err := StartSession(ctx, store, &Session{Backend: "record", Dimensions: 2, DOFPerNode: 2})
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if sink.SessionID() == "" {
		t.Fatalf("session id not generated")
	}

	s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2},
		dispatch.NewRecorder(sink), command.WithID(sink.SessionID()))
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	for _, x := range []float64{0, 1} {
		if _, err := command.New(ctx, s, def{nodeSchema, command.Values{}.Floats("coords", []float64{x, 0})}); err != nil {
			t.Fatalf("failed to create node: %v", err)
		}
	}

	lines, err := store.Lines(ctx, sink.SessionID())
	if err != nil {
		t.Fatalf("failed to read lines: %v", err)
	}
	want := []string{"model basic -ndm 2 -ndf 2", "node 1 0.0 0.0", "node 2 1.0 0.0"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	invs, err := store.ListInvocations(ctx, sink.SessionID())
	if err != nil {
		t.Fatalf("failed to list invocations: %v", err)
	}
	if last := invs[len(invs)-1]; last.Category != "node" || last.Tag != 2 || last.Seq <= invs[0].Seq {
		t.Errorf("unexpected invocation: %+v", last)
	}

	got, _ := store.GetSession(ctx, sink.SessionID())
	if got.Commands != 3 {
		t.Errorf("commands = %d, want 3", got.Commands)
	}

	// a duplicate sequence number is a sink failure, surfaced as a backend error
	dup := NewTranscriptSink(store, sink.SessionID())
	if err := dup.Append(ctx, command.Invocation{Seq: invs[0].Seq, Command: "wipe"}, "wipe"); err == nil {
		t.Errorf("expected duplicate seq to fail")
	}
}
