// Package script runs model scripts written in Starlark against a session.
//
// Every command in the catalog is exposed as a builtin. Commands with op
// types become modules whose members are the op types:
//
//	mat = uniaxialMaterial.Elastic(2.0e8, 0.0)
//	n1 = node([0.0, 0.0])
//	n2 = node([1.0, 0.0], mass=[1.0, 1.0])
//	element.zeroLength([n1, n2], materials=[mat], dirs=[1])
//	analyze(10, 0.01)
//
// Positional arguments bind to fields in declaration order and keyword
// arguments bind by field name. Lists become packets, None leaves a field
// absent, and returned objects are accepted wherever a reference is due.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/o3go/o3go/pkg/catalog"
	"github.com/o3go/o3go/pkg/command"
)

// DefaultTimeout bounds a script when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a script runs past its deadline.
var ErrTimeout = errors.New("script execution timeout")

// Result describes a finished script.
type Result struct {
	// Output holds the script's public globals converted to Go values.
	Output map[string]interface{} `json:"output,omitempty"`

	// Commands is the number of invocations the script emitted.
	Commands int `json:"commands"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`
}

// Runner executes model scripts.
type Runner struct {
	schemas *catalog.Registry
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds the execution time of each script.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger receives print output and run summaries.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRegistry replaces the default catalog.
func WithRegistry(reg *catalog.Registry) Option {
	return func(r *Runner) { r.schemas = reg }
}

// NewRunner creates a runner over the default catalog.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		schemas: catalog.Default(),
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	return r
}

// Run executes src against the session. Input values are predeclared as
// globals. The session is used by one goroutine at a time: on timeout the
// script is cancelled and Run waits for it to stop before returning.
func (r *Runner) Run(ctx context.Context, s *command.Session, filename string, src interface{}, input map[string]interface{}) (*Result, error) {
	start := time.Now()
	startSeq := s.Seq()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			r.logger.Info().Str("script", filename).Msg(msg)
		},
	}

	predeclared, err := r.predeclared(runCtx, s, input)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		globals starlark.StringDict
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		globals, err := starlark.ExecFile(thread, filename, src, predeclared)
		done <- outcome{globals, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		thread.Cancel(runCtx.Err().Error())
		out = <-done
		if ctx.Err() == nil {
			out.err = fmt.Errorf("%w after %v", ErrTimeout, r.timeout)
		} else {
			out.err = ctx.Err()
		}
	}

	res := &Result{
		Commands:      s.Seq() - startSeq,
		ExecutionTime: time.Since(start),
	}
	if out.err != nil {
		r.logger.Warn().Err(out.err).Str("script", filename).Int("commands", res.Commands).Msg("script failed")
		return res, fmt.Errorf("script %s: %w", filename, out.err)
	}

	res.Output = make(map[string]interface{})
	for name, val := range out.globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			continue
		}
		res.Output[name] = goVal
	}

	r.logger.Debug().
		Str("script", filename).
		Int("commands", res.Commands).
		Dur("duration", res.ExecutionTime).
		Msg("script finished")
	return res, nil
}

func (r *Runner) predeclared(ctx context.Context, s *command.Session, input map[string]interface{}) (starlark.StringDict, error) {
	cfg := s.Config()
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"ndm":    starlark.MakeInt(cfg.Dimensions),
		"ndf":    starlark.MakeInt(cfg.DOFPerNode),
		"FREE":   starlark.MakeInt(catalog.Free),
		"FIXED":  starlark.MakeInt(catalog.Fixed),
		"wipe": starlark.NewBuiltin("wipe", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			if err := s.Wipe(ctx); err != nil {
				return nil, err
			}
			return starlark.None, nil
		}),
	}
	for name, val := range r.commands(ctx, s) {
		if _, taken := predeclared[name]; taken {
			continue
		}
		predeclared[name] = val
	}

	for key, val := range input {
		if _, taken := predeclared[key]; taken {
			return nil, fmt.Errorf("input %s shadows a builtin", key)
		}
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}
	return predeclared, nil
}

// builtinName maps a command to the name it is exposed under. load is a
// Starlark keyword.
func builtinName(command string) string {
	if command == "load" {
		return "nodalLoad"
	}
	return command
}

// commands exposes the catalog: plain commands as builtins, commands with op
// types as modules.
func (r *Runner) commands(ctx context.Context, s *command.Session) starlark.StringDict {
	modules := make(map[string]starlark.StringDict)
	out := starlark.StringDict{}
	for _, schema := range r.schemas.All() {
		name := builtinName(schema.Command())
		fn := newBuiltin(ctx, s, schema)
		if schema.OpType() == "" {
			out[name] = fn
			continue
		}
		if modules[name] == nil {
			modules[name] = starlark.StringDict{}
		}
		modules[name][schema.OpType()] = fn
	}
	for name, members := range modules {
		if _, plain := out[name]; plain {
			continue
		}
		out[name] = &starlarkstruct.Module{Name: name, Members: members}
	}
	return out
}
