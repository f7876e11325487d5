package engineclient

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
	"github.com/o3go/o3go/pkg/engine"
	"github.com/o3go/o3go/pkg/enginehost"
	"github.com/o3go/o3go/pkg/protocol"
)

// pipeTransport runs a host function in-process over io.Pipe.
type pipeTransport struct {
	host func(r io.Reader, w io.Writer)

	mu      sync.Mutex
	done    chan struct{}
	uploads []string
	cleaned []string
}

func (p *pipeTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, localPath+"->"+remotePath)
	return nil
}

func (p *pipeTransport) Execute(ctx context.Context, path string, args []string) (io.WriteCloser, io.ReadCloser, error) {
	toHost, fromClient := io.Pipe()
	toClient, fromHost := io.Pipe()
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.host(toHost, fromHost)
		_ = fromHost.Close()
		_ = toHost.Close()
	}()
	return fromClient, toClient, nil
}

func (p *pipeTransport) Cleanup(ctx context.Context, remotePath string) error {
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleaned = append(p.cleaned, remotePath)
	return nil
}

// referenceHost serves a reference engine.
func referenceHost(r io.Reader, w io.Writer) {
	h := enginehost.New(r, w, enginehost.WithName("reference"))
	eng := engine.New(engine.WithOutput(h.Output))
	h.Serve(context.Background(), eng)
}

func startClient(t *testing.T, transport Transport, remotePath string) *Client {
	t.Helper()

	c, err := NewClient(Config{
		Transport:      transport,
		EnginePath:     "o3-engine",
		RemotePath:     remotePath,
		StartupTimeout: 2 * time.Second,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c
}

// TestNewClientValidation tests required configuration
func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{EnginePath: "x"}); err == nil {
		t.Error("expected error without transport")
	}
	if _, err := NewClient(Config{Transport: &pipeTransport{}}); err == nil {
		t.Error("expected error without engine path")
	}

	c, err := NewClient(Config{Transport: &pipeTransport{}, EnginePath: "x"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Invoke(context.Background(), "wipe", nil); err == nil {
		t.Error("expected error invoking before Start")
	}
}

// TestClientSession tests a live session against the reference engine
func TestClientSession(t *testing.T) {
	ctx := context.Background()
	transport := &pipeTransport{host: referenceHost}
	c := startClient(t, transport, "/tmp/o3/o3-engine")

	ready := c.Ready()
	if ready == nil || ready.Engine != "reference" || ready.Version != protocol.Version {
		t.Fatalf("ready = %+v", ready)
	}

	s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2}, dispatch.NewLive(c))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	analysis := command.MustSchema(command.CategoryControl, "analysis", "Static")
	if _, err := s.Run(ctx, command.MustSchema(command.CategoryControl, "analyze", "",
		command.Required("steps", command.TypeInt)), command.Values{}.Int("steps", 1)); !command.IsEngineInvocation(err) {
		t.Fatalf("expected engine rejection, got %v", err)
	} else {
		var cerr *command.Error
		if !errors.As(err, &cerr) || !strings.Contains(cerr.Diagnostic, "no analysis defined") {
			t.Errorf("diagnostic = %q", cerr.Diagnostic)
		}
	}

	if _, err := s.Run(ctx, analysis, command.Values{}); err != nil {
		t.Fatalf("analysis: %v", err)
	}

	status, err := c.Invoke(ctx, "analyze", []command.Token{command.Int(4)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(status.Message, "analyze: 4 steps") {
		t.Errorf("status message = %q", status.Message)
	}

	status, err = c.Invoke(ctx, "getTime", nil)
	if err != nil || len(status.Values) != 1 || status.Values[0] != 4 {
		t.Errorf("getTime = %+v, %v", status, err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	exit := c.Exit()
	if exit == nil || exit.Reason != enginehost.ReasonRequested || exit.CommandsTotal != 5 {
		t.Errorf("exit = %+v", exit)
	}
	if len(transport.uploads) != 1 || transport.uploads[0] != "o3-engine->/tmp/o3/o3-engine" {
		t.Errorf("uploads = %v", transport.uploads)
	}
	if len(transport.cleaned) != 1 || transport.cleaned[0] != "/tmp/o3/o3-engine" {
		t.Errorf("cleaned = %v", transport.cleaned)
	}

	if _, err := c.Invoke(ctx, "wipe", nil); err == nil {
		t.Error("expected error after Close")
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// TestClientStartTimeout tests a host that never becomes ready
func TestClientStartTimeout(t *testing.T) {
	release := make(chan struct{})
	transport := &pipeTransport{host: func(r io.Reader, w io.Writer) { <-release }}

	c, err := NewClient(Config{Transport: transport, EnginePath: "o3-engine", StartupTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout, got %v", err)
	}
	close(release)
	if _, err := c.Invoke(context.Background(), "wipe", nil); err == nil {
		t.Error("expected unusable client after failed start")
	}
}

// TestClientHostExit tests a host that exits while a command is pending
func TestClientHostExit(t *testing.T) {
	transport := &pipeTransport{host: func(r io.Reader, w io.Writer) {
		enc := protocol.NewEncoder(w)
		dec := protocol.NewDecoder(r)
		_ = enc.EncodeReady(&protocol.ReadyMessage{Version: protocol.Version, Engine: "flaky"})
		_, _ = dec.DecodeCommand()
		_ = enc.EncodeExit(&protocol.ExitMessage{Reason: "ttl_expired"})
	}}
	c := startClient(t, transport, "")

	_, err := c.Invoke(context.Background(), "wipe", nil)
	if command.KindOf(err) != command.KindBackend {
		t.Fatalf("expected backend error, got %v", err)
	}
	if exit := c.Exit(); exit == nil || exit.Reason != "ttl_expired" {
		t.Errorf("exit = %+v", exit)
	}
	if _, err := c.Invoke(context.Background(), "wipe", nil); err == nil {
		t.Error("expected unusable client after host exit")
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// TestClientVersionMismatch tests that an incompatible host is refused
func TestClientVersionMismatch(t *testing.T) {
	transport := &pipeTransport{host: func(r io.Reader, w io.Writer) {
		_ = protocol.NewEncoder(w).EncodeReady(&protocol.ReadyMessage{Version: "0"})
		_, _ = io.Copy(io.Discard, r)
	}}
	c, err := NewClient(Config{Transport: transport, EnginePath: "o3-engine"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "protocol 0") {
		t.Errorf("expected version error, got %v", err)
	}
}

// TestClientCancelledCommand tests that an abandoned command poisons the client
func TestClientCancelledCommand(t *testing.T) {
	transport := &pipeTransport{host: func(r io.Reader, w io.Writer) {
		_ = protocol.NewEncoder(w).EncodeReady(&protocol.ReadyMessage{Version: protocol.Version})
		_, _ = io.Copy(io.Discard, r)
	}}
	c := startClient(t, transport, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Invoke(ctx, "wipe", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if _, err := c.Invoke(context.Background(), "wipe", nil); err == nil || !strings.Contains(err.Error(), "unusable") {
		t.Errorf("expected unusable client, got %v", err)
	}
}

// TestTimeoutSeconds tests conversion of command timeouts to protocol seconds
func TestTimeoutSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{30 * time.Second, 30},
	}
	for _, tt := range tests {
		if got := timeoutSeconds(tt.in); got != tt.want {
			t.Errorf("timeoutSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
