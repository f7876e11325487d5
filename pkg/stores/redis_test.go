package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
)

// TestRedisSink tests recording a transcript into a Redis list
func TestRedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := NewRedisClient(mr.Addr(), "", 0)
	defer client.Close()

	ctx := context.Background()
	sink := NewRedisSink(client, "abc", WithRedisPrefix("test:"), WithRedisTTL(time.Hour))
	if sink.Key() != "test:abc" {
		t.Errorf("key = %q", sink.Key())
	}

	s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2},
		dispatch.NewTee(dispatch.NewCapture(), dispatch.NewRecorder(sink)))
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	if _, err := command.New(ctx, s, def{nodeSchema, command.Values{}.Floats("coords", []float64{0, 1})}); err != nil {
		t.Fatalf("failed to create node: %v", err)
	}

	lines, err := RedisLines(ctx, client, sink.Key())
	if err != nil {
		t.Fatalf("failed to read lines: %v", err)
	}
	if len(lines) != 2 || lines[1] != "node 1 0.0 1.0" {
		t.Errorf("lines = %q", lines)
	}
	if ttl := mr.TTL(sink.Key()); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	if _, err := RedisLines(ctx, client, "test:missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	mr.Close()
	if err := sink.Append(ctx, command.Invocation{Command: "wipe"}, "wipe"); err == nil {
		t.Errorf("expected append to fail after server shutdown")
	}
}
