package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/o3go/o3go/pkg/command"
)

// Tee emits to a primary backend and, when it succeeds, to every secondary.
// The primary's status is returned. A typical use is a live engine as
// primary and a recorder as secondary, which yields a transcript of exactly
// the commands the engine accepted.
type Tee struct {
	primary     command.Backend
	secondaries []command.Backend
}

// NewTee creates a tee backend.
func NewTee(primary command.Backend, secondaries ...command.Backend) *Tee {
	return &Tee{primary: primary, secondaries: secondaries}
}

// Name implements the backend name hook.
func (t *Tee) Name() string {
	names := []string{command.BackendName(t.primary)}
	for _, s := range t.secondaries {
		names = append(names, command.BackendName(s))
	}
	return "tee(" + strings.Join(names, ",") + ")"
}

// Emit implements command.Backend. Each backend receives its own copy of
// the tokens, so every one sees what the session encoded.
func (t *Tee) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	status, err := t.primary.Emit(ctx, withTokenCopy(inv))
	if err != nil {
		return status, err
	}
	for i, s := range t.secondaries {
		if _, err := s.Emit(ctx, withTokenCopy(inv)); err != nil {
			return status, command.NewBackendError(fmt.Sprintf("secondary backend %d failed", i), err)
		}
	}
	return status, nil
}

func withTokenCopy(inv command.Invocation) command.Invocation {
	inv.Tokens = append([]command.Token(nil), inv.Tokens...)
	return inv
}
