// Package engineclient drives an engine host process over the JSON-lines
// protocol. A Client implements dispatch.Invoker, so a live session can use
// an engine running locally, on a remote host over SSH, or as a WASI module.
package engineclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/protocol"
)

// Transport defines how the engine host is placed and started.
type Transport interface {
	// Upload places the engine host binary at remotePath.
	Upload(ctx context.Context, localPath, remotePath string) error
	// Execute starts the engine host and returns its stdin and stdout.
	Execute(ctx context.Context, path string, args []string) (stdin io.WriteCloser, stdout io.ReadCloser, err error)
	// Cleanup waits for the host to stop and removes remotePath if set.
	Cleanup(ctx context.Context, remotePath string) error
}

// Config contains client configuration options.
type Config struct {
	Transport Transport
	// EnginePath is the engine host to run. When RemotePath is empty it is
	// run in place without uploading.
	EnginePath string
	// RemotePath is where the engine host is uploaded before it runs.
	RemotePath string
	// Args are passed to the engine host.
	Args []string
	// StartupTimeout bounds the wait for READY.
	StartupTimeout time.Duration
	// CommandTimeout is sent with each command; 0 means none.
	CommandTimeout time.Duration
	Logger         zerolog.Logger
}

type result struct {
	msg *protocol.Message
	err error
}

// Client manages communication with one engine host instance.
type Client struct {
	cfg     Config
	encoder *protocol.Encoder
	decoder *protocol.Decoder
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	msgs    chan result
	ready   *protocol.ReadyMessage
	exit    *protocol.ExitMessage

	mu      sync.Mutex
	seq     int
	started bool
	broken  error
	closed  bool
}

// NewClient creates a new engine client. It does not start the host.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.EnginePath == "" {
		return nil, fmt.Errorf("engine path is required")
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}
	return &Client{cfg: cfg}, nil
}

// Start uploads the engine host if configured, starts it and waits for READY.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.started {
		return fmt.Errorf("client already started")
	}

	path := c.cfg.EnginePath
	if c.cfg.RemotePath != "" {
		if err := c.cfg.Transport.Upload(ctx, c.cfg.EnginePath, c.cfg.RemotePath); err != nil {
			return fmt.Errorf("failed to upload engine host: %w", err)
		}
		path = c.cfg.RemotePath
	}

	stdin, stdout, err := c.cfg.Transport.Execute(ctx, path, c.cfg.Args)
	if err != nil {
		return fmt.Errorf("failed to start engine host: %w", err)
	}
	c.stdin = stdin
	c.stdout = stdout
	c.encoder = protocol.NewEncoder(stdin)
	c.decoder = protocol.NewDecoder(stdout)
	c.msgs = make(chan result, 16)
	c.started = true
	go c.read()

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	defer cancel()

	select {
	case <-readyCtx.Done():
		c.broken = fmt.Errorf("no READY from engine host")
		return fmt.Errorf("timeout waiting for READY message")
	case r := <-c.msgs:
		if r.err != nil {
			c.broken = r.err
			return fmt.Errorf("failed to receive READY: %w", r.err)
		}
		if r.msg.Type != protocol.MessageTypeReady {
			c.broken = fmt.Errorf("protocol out of sync")
			return fmt.Errorf("expected READY, got %s", r.msg.Type)
		}
		var ready protocol.ReadyMessage
		if err := protocol.ParseData(r.msg, &ready); err != nil {
			c.broken = err
			return err
		}
		if ready.Version != protocol.Version {
			c.broken = fmt.Errorf("protocol version %s", ready.Version)
			return fmt.Errorf("engine host speaks protocol %s, want %s", ready.Version, protocol.Version)
		}
		c.ready = &ready
		c.cfg.Logger.Info().
			Str("engine", ready.Engine).
			Str("platform", ready.Platform+"/"+ready.Arch).
			Int("pid", ready.PID).
			Msg("engine host ready")
		return nil
	}
}

// read forwards decoded messages until the stream ends.
func (c *Client) read() {
	defer close(c.msgs)
	for {
		msg, err := c.decoder.Decode()
		c.msgs <- result{msg: msg, err: err}
		if err != nil {
			return
		}
	}
}

// Invoke sends one command and waits for its outcome. Engine output that
// arrives while the command runs is logged and returned in Status.Message.
// If ctx ends mid-command the client is unusable afterwards, since the
// reply would arrive out of order.
func (c *Client) Invoke(ctx context.Context, cmd string, tokens []command.Token) (command.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return command.Status{}, fmt.Errorf("client is closed")
	}
	if !c.started {
		return command.Status{}, fmt.Errorf("client is not started")
	}
	if c.broken != nil {
		return command.Status{}, fmt.Errorf("engine connection unusable: %w", c.broken)
	}

	c.seq++
	msg := &protocol.CommandMessage{
		ID:      uuid.NewString(),
		Seq:     c.seq,
		Command: cmd,
		Tokens:  tokens,
		Timeout: timeoutSeconds(c.cfg.CommandTimeout),
	}
	if err := c.encoder.EncodeCommand(msg); err != nil {
		c.broken = err
		return command.Status{}, fmt.Errorf("failed to send command: %w", err)
	}

	var output []string
	for {
		var r result
		var ok bool
		select {
		case <-ctx.Done():
			c.broken = fmt.Errorf("command %d abandoned: %w", msg.Seq, ctx.Err())
			return command.Status{}, ctx.Err()
		case r, ok = <-c.msgs:
		}
		if !ok || r.err == io.EOF {
			c.broken = io.ErrUnexpectedEOF
			return command.Status{}, fmt.Errorf("engine host closed the stream")
		}
		if r.err != nil {
			c.broken = r.err
			return command.Status{}, fmt.Errorf("failed to read response: %w", r.err)
		}

		switch r.msg.Type {
		case protocol.MessageTypeEvent:
			var event protocol.EventMessage
			if err := protocol.ParseData(r.msg, &event); err != nil {
				return command.Status{}, err
			}
			c.logEvent(cmd, &event)
			output = append(output, event.Message)

		case protocol.MessageTypeDone:
			var done protocol.DoneMessage
			if err := protocol.ParseData(r.msg, &done); err != nil {
				return command.Status{}, err
			}
			if done.CommandID != msg.ID {
				c.broken = fmt.Errorf("command ID mismatch")
				return command.Status{}, fmt.Errorf("command ID mismatch: expected %s, got %s", msg.ID, done.CommandID)
			}
			status := done.Status
			if len(output) > 0 {
				if status.Message != "" {
					output = append(output, status.Message)
				}
				status.Message = strings.Join(output, "\n")
			}
			return status, nil

		case protocol.MessageTypeError:
			var errMsg protocol.ErrorMessage
			if err := protocol.ParseData(r.msg, &errMsg); err != nil {
				return command.Status{}, err
			}
			if errMsg.CommandID != "" && errMsg.CommandID != msg.ID {
				c.broken = fmt.Errorf("command ID mismatch")
				return command.Status{}, fmt.Errorf("command ID mismatch: expected %s, got %s", msg.ID, errMsg.CommandID)
			}
			return command.Status{}, errMsg.Err()

		case protocol.MessageTypeExit:
			var exit protocol.ExitMessage
			_ = protocol.ParseData(r.msg, &exit)
			c.exit = &exit
			c.broken = fmt.Errorf("engine host exited: %s", exit.Reason)
			return command.Status{}, command.NewBackendError("engine host exited unexpectedly", c.broken)

		default:
			return command.Status{}, fmt.Errorf("unexpected message type: %s", r.msg.Type)
		}
	}
}

func (c *Client) logEvent(cmd string, event *protocol.EventMessage) {
	var ev *zerolog.Event
	switch event.Level {
	case "warn":
		ev = c.cfg.Logger.Warn()
	case "debug":
		ev = c.cfg.Logger.Debug()
	default:
		ev = c.cfg.Logger.Info()
	}
	ev.Str("command", cmd).Msg(event.Message)
}

// Ready returns the READY message received during startup.
func (c *Client) Ready() *protocol.ReadyMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Exit returns the host's EXIT message, once it has been received.
func (c *Client) Exit() *protocol.ExitMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exit
}

// Close asks the host to exit, closes its stdin and cleans up.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if !c.started {
		return nil
	}

	var errs []string
	if c.broken == nil {
		if err := c.encoder.EncodeExit(&protocol.ExitMessage{Reason: "requested"}); err != nil {
			errs = append(errs, fmt.Sprintf("send exit: %v", err))
		}
	}
	if err := c.stdin.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("close stdin: %v", err))
	}

	// drain until the host closes its side, keeping its EXIT
	drain := time.NewTimer(c.cfg.StartupTimeout)
	defer drain.Stop()
loop:
	for {
		select {
		case r, ok := <-c.msgs:
			if !ok {
				break loop
			}
			if r.msg != nil && r.msg.Type == protocol.MessageTypeExit {
				var exit protocol.ExitMessage
				if protocol.ParseData(r.msg, &exit) == nil {
					c.exit = &exit
				}
			}
		case <-drain.C:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	if err := c.stdout.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("close stdout: %v", err))
	}
	if err := c.cfg.Transport.Cleanup(ctx, c.cfg.RemotePath); err != nil {
		errs = append(errs, fmt.Sprintf("cleanup: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %s", strings.Join(errs, "; "))
	}
	if c.exit != nil {
		c.cfg.Logger.Debug().Str("reason", c.exit.Reason).Int("commands", c.exit.CommandsTotal).Msg("engine host exited")
	}
	return nil
}

// timeoutSeconds converts d to the protocol's whole seconds, rounding up so
// that a sub-second timeout is not sent as "none".
func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
