package dispatch

import (
	"context"
	"sync"

	"github.com/o3go/o3go/pkg/command"
)

// Capture is an in-memory backend that keeps every invocation and answers
// with scripted results. It is meant for tests.
type Capture struct {
	mu   sync.Mutex
	invs []command.Invocation

	// Statuses maps a procedure name to the status returned for it.
	Statuses map[string]command.Status

	// Errors maps a sequence number to the error returned for it.
	Errors map[int]error
}

// NewCapture creates an empty capture backend.
func NewCapture() *Capture {
	return &Capture{
		Statuses: make(map[string]command.Status),
		Errors:   make(map[int]error),
	}
}

// Name implements the backend name hook.
func (c *Capture) Name() string { return "capture" }

// Emit implements command.Backend.
func (c *Capture) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv.Tokens = append([]command.Token(nil), inv.Tokens...)
	c.invs = append(c.invs, inv)
	if err, ok := c.Errors[inv.Seq]; ok {
		return command.Status{}, err
	}
	return c.Statuses[inv.Command], nil
}

// Invocations returns a copy of everything emitted so far.
func (c *Capture) Invocations() []command.Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]command.Invocation(nil), c.invs...)
}

// Lines returns the emitted invocations in transcript syntax.
func (c *Capture) Lines() []string {
	invs := c.Invocations()
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.Line()
	}
	return out
}

// Reset forgets all captured invocations.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invs = nil
}
