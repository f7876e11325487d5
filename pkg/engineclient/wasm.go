package engineclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// WASMTransport runs an engine host compiled to WASI inside the process,
// with stdin and stdout connected through pipes. Upload compiles the module;
// Execute instantiates it, which runs its _start function.
type WASMTransport struct {
	// MemoryLimitPages caps guest memory in 64KB pages. Default is 1024 (64MB).
	MemoryLimitPages uint32
	Logger           zerolog.Logger

	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	stdin    *io.PipeWriter
	done     chan error
}

// NewWASMTransport creates a WASI transport.
func NewWASMTransport(logger zerolog.Logger) *WASMTransport {
	return &WASMTransport{MemoryLimitPages: 1024, Logger: logger}
}

func (t *WASMTransport) init(ctx context.Context) error {
	if t.runtime != nil {
		return nil
	}
	if t.MemoryLimitPages == 0 {
		t.MemoryLimitPages = 1024
	}
	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(t.MemoryLimitPages).
		WithCloseOnContextDone(true)

	r := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	t.runtime = r
	return nil
}

// Upload reads and compiles the module at localPath. remotePath is unused:
// the module never leaves the process.
func (t *WASMTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	wasm, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read module: %w", err)
	}
	return t.Compile(ctx, wasm)
}

// Compile compiles a module from memory.
func (t *WASMTransport) Compile(ctx context.Context, wasm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.init(ctx); err != nil {
		return err
	}
	compiled, err := t.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("failed to compile module: %w", err)
	}
	t.compiled = compiled
	return nil
}

// Execute instantiates the compiled module, compiling path first if Upload
// was not called. The guest runs until it exits or its stdin closes.
func (t *WASMTransport) Execute(ctx context.Context, path string, args []string) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	compiled := t.compiled
	running := t.done != nil
	t.mu.Unlock()

	if running {
		return nil, nil, fmt.Errorf("engine host already running")
	}
	if compiled == nil {
		if err := t.Upload(ctx, path, ""); err != nil {
			return nil, nil, err
		}
		t.mu.Lock()
		compiled = t.compiled
		t.mu.Unlock()
	}

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderr := zerologWriter{t.Logger}

	config := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{filepath.Base(path)}, args...)...).
		WithStdin(stdinR).
		WithStdout(stdoutW).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime()

	done := make(chan error, 1)
	t.mu.Lock()
	t.stdin = stdinW
	t.done = done
	runtime := t.runtime
	t.mu.Unlock()

	// the guest outlives the Execute call
	runCtx := context.WithoutCancel(ctx)
	go func() {
		mod, err := runtime.InstantiateModule(runCtx, compiled, config)
		if mod != nil {
			_ = mod.Close(runCtx)
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			err = nil
		}
		_ = stdinR.Close()
		_ = stdoutW.CloseWithError(err)
		done <- err
	}()

	return stdinW, stdoutR, nil
}

// Cleanup waits for the guest to finish and releases the runtime.
func (t *WASMTransport) Cleanup(ctx context.Context, remotePath string) error {
	t.mu.Lock()
	stdin, done, runtime := t.stdin, t.done, t.runtime
	t.stdin, t.done, t.runtime, t.compiled = nil, nil, nil, nil
	t.mu.Unlock()

	var err error
	if done != nil {
		_ = stdin.Close()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if runtime != nil {
		if cerr := runtime.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// zerologWriter logs guest stderr.
type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Write(p []byte) (int, error) {
	w.logger.Info().Str("stream", "stderr").Msg(string(p))
	return len(p), nil
}
