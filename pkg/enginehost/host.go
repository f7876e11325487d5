// Package enginehost serves an engine over the JSON-lines protocol. It is
// the process on the far side of an engineclient transport: it announces
// READY, answers each CMD with DONE or ERROR and says EXIT before it stops.
package enginehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
	"github.com/o3go/o3go/pkg/protocol"
)

// Exit reasons reported in the EXIT message.
const (
	ReasonStdinClosed = "stdin_closed"
	ReasonRequested   = "requested"
	ReasonTTLExpired  = "ttl_expired"
	ReasonCancelled   = "cancelled"
	ReasonError       = "error"
)

// Host runs the command loop for one engine.
type Host struct {
	encoder *protocol.Encoder
	decoder *protocol.Decoder
	name    string
	ttl     time.Duration
	meta    map[string]string
	logger  zerolog.Logger

	mu       sync.Mutex
	current  string
	commands int
}

// Option configures a Host.
type Option func(*Host)

// WithName sets the engine name announced in READY.
func WithName(name string) Option {
	return func(h *Host) { h.name = name }
}

// WithTTL stops the host after d even if the client keeps the pipe open.
func WithTTL(d time.Duration) Option {
	return func(h *Host) { h.ttl = d }
}

// WithMetadata adds a key to the READY metadata.
func WithMetadata(key, value string) Option {
	return func(h *Host) { h.meta[key] = value }
}

// WithLogger sets the host logger. It must not write to the protocol stream.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// New creates a host reading commands from r and writing messages to w.
func New(r io.Reader, w io.Writer, opts ...Option) *Host {
	h := &Host{
		encoder: protocol.NewEncoder(w),
		decoder: protocol.NewDecoder(r),
		name:    "engine",
		meta:    make(map[string]string),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Output sends engine output for the command being served as an EVENT.
// Output outside a command is only logged.
func (h *Host) Output(level, message string) {
	h.mu.Lock()
	id := h.current
	h.mu.Unlock()

	if id == "" {
		h.logger.Info().Str("level", level).Msg(message)
		return
	}
	if err := h.encoder.EncodeEvent(&protocol.EventMessage{CommandID: id, Level: level, Message: message}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to send event")
	}
}

// Serve announces READY and serves commands until the input closes, the
// client sends EXIT, the TTL expires or ctx is cancelled. It sends EXIT and
// returns the exit code for the process.
func (h *Host) Serve(ctx context.Context, engine dispatch.Invoker) int {
	if h.ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ttl)
		defer cancel()
		h.meta["ttl"] = h.ttl.String()
	}

	ready := &protocol.ReadyMessage{
		Version:  protocol.Version,
		Engine:   h.name,
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		PID:      os.Getpid(),
		Metadata: h.meta,
	}
	if err := h.encoder.EncodeReady(ready); err != nil {
		h.logger.Error().Err(err).Msg("failed to send READY")
		return 1
	}

	msgs := make(chan *protocol.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := h.decoder.Decode()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return h.exit(ReasonTTLExpired, 0)
			}
			return h.exit(ReasonCancelled, 0)

		case err := <-readErr:
			if err == io.EOF {
				return h.exit(ReasonStdinClosed, 0)
			}
			h.logger.Error().Err(err).Msg("failed to read message")
			h.sendError("", protocol.CodeInvalid, err.Error())
			return h.exit(ReasonError, 1)

		case msg := <-msgs:
			switch msg.Type {
			case protocol.MessageTypeExit:
				return h.exit(ReasonRequested, 0)
			case protocol.MessageTypeCommand:
				h.serveCommand(ctx, engine, msg)
			default:
				h.sendError("", protocol.CodeInvalid, fmt.Sprintf("unexpected %s message", msg.Type))
			}
		}
	}
}

func (h *Host) serveCommand(ctx context.Context, engine dispatch.Invoker, msg *protocol.Message) {
	var cmd protocol.CommandMessage
	if err := protocol.ParseData(msg, &cmd); err != nil {
		h.sendError("", protocol.CodeInvalid, err.Error())
		return
	}
	if err := cmd.Validate(); err != nil {
		h.sendError(cmd.ID, protocol.CodeInvalid, err.Error())
		return
	}

	h.mu.Lock()
	h.current = cmd.ID
	h.commands++
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.current = ""
		h.mu.Unlock()
	}()

	cmdCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, time.Duration(cmd.Timeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	status, err := engine.Invoke(cmdCtx, cmd.Command, cmd.Tokens)
	duration := time.Since(start)

	h.logger.Debug().
		Int("seq", cmd.Seq).
		Str("command", cmd.Command).
		Dur("duration", duration).
		Err(err).
		Msg("command served")

	if err != nil {
		var cerr *command.Error
		if errors.As(err, &cerr) && cerr.Kind == command.KindEngineInvocation {
			h.sendError(cmd.ID, protocol.CodeRejected, cerr.Diagnostic)
			return
		}
		h.sendError(cmd.ID, protocol.CodeInternal, err.Error())
		return
	}

	done := &protocol.DoneMessage{CommandID: cmd.ID, Status: status, Duration: duration.Seconds()}
	if err := h.encoder.EncodeDone(done); err != nil {
		h.logger.Error().Err(err).Msg("failed to send DONE")
	}
}

func (h *Host) sendError(id, code, message string) {
	if err := h.encoder.EncodeError(&protocol.ErrorMessage{CommandID: id, Code: code, Message: message}); err != nil {
		h.logger.Error().Err(err).Msg("failed to send ERROR")
	}
}

func (h *Host) exit(reason string, code int) int {
	h.mu.Lock()
	total := h.commands
	h.mu.Unlock()

	h.logger.Info().Str("reason", reason).Int("commands", total).Msg("engine host exiting")
	if err := h.encoder.EncodeExit(&protocol.ExitMessage{Reason: reason, ExitCode: code, CommandsTotal: total}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to send EXIT")
	}
	return code
}
