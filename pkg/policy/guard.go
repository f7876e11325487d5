package policy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
)

// Schemas finds the schema of an emitted command. catalog.Registry
// implements it.
type Schemas interface {
	Lookup(cmd, opType string) (*command.Schema, bool)
}

// Guard is a command.Backend that evaluates every invocation against the
// engine's policies before forwarding it. Blocking violations are returned
// as policy errors and never reach the next backend.
type Guard struct {
	engine  *Engine
	schemas Schemas
	next    command.Backend
	logger  zerolog.Logger
	model   Model
}

// NewGuard wraps next. schemas may be nil, in which case policies only see
// the raw args.
func NewGuard(engine *Engine, schemas Schemas, next command.Backend, logger zerolog.Logger) *Guard {
	return &Guard{
		engine:  engine,
		schemas: schemas,
		next:    next,
		logger:  logger.With().Str("component", "policy-guard").Logger(),
	}
}

// Name implements the optional backend name used in logs.
func (g *Guard) Name() string {
	return "policy(" + command.BackendName(g.next) + ")"
}

// Model returns the model declared so far.
func (g *Guard) Model() Model { return g.model }

// Emit implements command.Backend.
func (g *Guard) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	if inv.Command == "model" {
		g.model = declaredModel(inv.Tokens)
	}

	result, err := g.engine.Evaluate(ctx, g.Input(inv))
	if err != nil {
		return command.Status{}, command.NewBackendError("policy evaluation failed", err)
	}

	for _, w := range result.Warnings {
		g.logger.Warn().
			Str("policy", w.Policy).
			Str("command", inv.Command).
			Int("seq", inv.Seq).
			Msg(w.Message)
	}
	if !result.Allowed {
		msgs := make([]string, 0, len(result.Violations))
		for _, v := range result.Violations {
			msgs = append(msgs, v.Policy+": "+v.Message)
		}
		return command.Status{}, command.NewPolicyError(strings.Join(msgs, "; ")).
			WithCommand(inv.Command, inv.OpType).
			WithDetail("seq", inv.Seq)
	}

	return g.next.Emit(ctx, inv)
}

// Input builds the policy input for an invocation.
func (g *Guard) Input(inv command.Invocation) *Input {
	in := &Input{
		Command:  inv.Command,
		OpType:   inv.OpType,
		Category: inv.Category.String(),
		Tag:      inv.Tag,
		Seq:      inv.Seq,
		Args:     make([]interface{}, 0, len(inv.Tokens)),
		Fields:   map[string][]interface{}{},
		Model:    g.model,
	}
	for _, t := range inv.Tokens {
		in.Args = append(in.Args, t.Interface())
	}

	if g.schemas == nil {
		return in
	}
	schema, ok := g.schemas.Lookup(inv.Command, inv.OpType)
	if !ok {
		return in
	}
	decoded, err := schema.Decode(inv.Tokens)
	if err != nil {
		g.logger.Debug().Err(err).Str("command", inv.Command).Msg("Invocation does not match its schema")
		return in
	}
	for name, toks := range decoded.Args {
		vals := make([]interface{}, 0, len(toks))
		for _, t := range toks {
			vals = append(vals, t.Interface())
		}
		in.Fields[name] = vals
	}
	return in
}

// declaredModel reads -ndm and -ndf from a model command.
func declaredModel(tokens []command.Token) Model {
	var m Model
	for i := 0; i+1 < len(tokens); i++ {
		flag, _ := tokens[i].AsString()
		n, ok := tokens[i+1].AsInt()
		if !ok {
			continue
		}
		switch flag {
		case "-ndm":
			m.Dimensions = int(n)
		case "-ndf":
			m.DOFPerNode = int(n)
		}
	}
	return m
}
