package engineclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/o3go/o3go/pkg/transports/ssh"
	"github.com/rs/zerolog"
)

// SSHTransport runs the engine host on a remote machine. The engine host
// is uploaded over SFTP when the client has a RemotePath.
type SSHTransport struct {
	client *ssh.Client
	logger zerolog.Logger

	mu   sync.Mutex
	proc *ssh.RemoteProcess
}

// NewSSHTransport creates a transport over a connected SSH client.
func NewSSHTransport(client *ssh.Client, logger zerolog.Logger) *SSHTransport {
	return &SSHTransport{client: client, logger: logger}
}

// Upload copies the engine host to the remote machine.
func (t *SSHTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	return t.client.Upload(ctx, localPath, remotePath, 0755)
}

// Execute starts the engine host on the remote machine.
func (t *SSHTransport) Execute(ctx context.Context, path string, args []string) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.proc != nil {
		return nil, nil, fmt.Errorf("engine host already running")
	}

	words := append([]string{path}, args...)
	for i, w := range words {
		words[i] = shellQuote(w)
	}
	proc, err := t.client.Start(ctx, strings.Join(words, " "))
	if err != nil {
		return nil, nil, err
	}
	t.proc = proc

	go forwardLines(proc.Stderr, t.logger)
	return proc.Stdin, readCloser{proc.Stdout, proc}, nil
}

// Cleanup waits for the remote host to exit and removes the uploaded copy.
func (t *SSHTransport) Cleanup(ctx context.Context, remotePath string) error {
	t.mu.Lock()
	proc := t.proc
	t.proc = nil
	t.mu.Unlock()

	var err error
	if proc != nil {
		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		_ = proc.Close()
	}
	if remotePath != "" {
		if rerr := t.client.Remove(ctx, remotePath); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

// shellQuote quotes a word for a POSIX shell.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
