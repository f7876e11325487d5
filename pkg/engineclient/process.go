package engineclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProcessTransport runs the engine host as a local child process. Its
// stderr is forwarded to the logger line by line.
type ProcessTransport struct {
	// GracePeriod is how long Cleanup waits for the process before killing it.
	GracePeriod time.Duration
	// Env is added to the child's environment.
	Env    []string
	Logger zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stderr *sync.WaitGroup
}

// NewProcessTransport creates a local process transport.
func NewProcessTransport(logger zerolog.Logger) *ProcessTransport {
	return &ProcessTransport{GracePeriod: 5 * time.Second, Logger: logger}
}

// Upload copies the engine host to remotePath and makes it executable.
func (t *ProcessTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open engine host: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(remotePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	dst, err := os.OpenFile(remotePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy engine host: %w", err)
	}
	return dst.Close()
}

// Execute starts the process. The process outlives ctx; Cleanup stops it.
func (t *ProcessTransport) Execute(ctx context.Context, path string, args []string) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil, nil, fmt.Errorf("engine host already running")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), t.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	t.Logger.Debug().Str("path", path).Int("pid", cmd.Process.Pid).Msg("engine host started")

	stderrDone := &sync.WaitGroup{}
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		forwardLines(stderr, t.Logger)
	}()

	t.cmd = cmd
	t.stderr = stderrDone
	return stdin, stdout, nil
}

// Cleanup waits for the process to exit, killing it after the grace
// period, and removes the uploaded copy if remotePath is set. The caller
// must have finished reading stdout.
func (t *ProcessTransport) Cleanup(ctx context.Context, remotePath string) error {
	t.mu.Lock()
	cmd, stderrDone := t.cmd, t.stderr
	t.cmd, t.stderr = nil, nil
	t.mu.Unlock()

	var err error
	if cmd != nil {
		done := make(chan error, 1)
		go func() {
			stderrDone.Wait()
			done <- cmd.Wait()
		}()

		grace := time.NewTimer(t.GracePeriod)
		defer grace.Stop()

		select {
		case err = <-done:
		case <-grace.C:
			t.Logger.Warn().Int("pid", cmd.Process.Pid).Msg("engine host did not exit, killing it")
			_ = cmd.Process.Kill()
			<-done
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			err = ctx.Err()
		}
	}

	if remotePath != "" {
		if rerr := os.Remove(remotePath); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}

// forwardLines logs each line read from r until it ends.
func forwardLines(r io.Reader, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Info().Str("stream", "stderr").Msg(scanner.Text())
	}
}
