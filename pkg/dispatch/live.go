// Package dispatch provides the command backends: Live forwards invocations
// to an engine, Recorder appends them to a transcript sink, and Tee and
// Capture combine or fake them. Replay feeds a transcript back through a
// session.
package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
)

// Invoker is the engine invocation surface: it executes one procedure with
// its tokens. Rejections are reported as command engine invocation errors
// carrying the engine's diagnostic; any other error is a transport failure.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, tokens []command.Token) (command.Status, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, cmd string, tokens []command.Token) (command.Status, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, cmd string, tokens []command.Token) (command.Status, error) {
	return f(ctx, cmd, tokens)
}

// Live forwards each invocation to an engine synchronously.
type Live struct {
	invoker Invoker
	logger  zerolog.Logger
}

// LiveOption configures a Live backend.
type LiveOption func(*Live)

// WithLiveLogger sets the logger used for engine diagnostics.
func WithLiveLogger(logger zerolog.Logger) LiveOption {
	return func(l *Live) {
		l.logger = logger
	}
}

// NewLive creates a live backend over invoker.
func NewLive(invoker Invoker, opts ...LiveOption) *Live {
	l := &Live{invoker: invoker, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements the backend name hook.
func (l *Live) Name() string { return "live" }

// Emit forwards inv to the engine.
func (l *Live) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	if err := ctx.Err(); err != nil {
		return command.Status{}, command.NewBackendError("context done before dispatch", err)
	}

	status, err := l.invoker.Invoke(ctx, inv.Command, inv.Tokens)
	if err == nil {
		if status.Message != "" {
			l.logger.Debug().Str("line", inv.Line()).Str("engine", status.Message).Msg("Engine output")
		}
		return status, nil
	}

	var cerr *command.Error
	if errors.As(err, &cerr) {
		if cerr.Kind == command.KindEngineInvocation {
			l.logger.Warn().
				Str("line", inv.Line()).
				Str("diagnostic", cerr.Diagnostic).
				Msg("Engine rejected command")
		}
		return status, err
	}
	return status, command.NewBackendError("engine transport failed", err)
}
