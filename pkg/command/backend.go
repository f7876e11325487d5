package command

import (
	"context"
	"fmt"
	"time"
)

// Invocation is one fully encoded command as handed to a Backend.
type Invocation struct {
	// Seq is the 1-based position of the invocation within its session.
	Seq int `json:"seq"`

	// Session is the id of the emitting session.
	Session string `json:"session"`

	// Command is the engine procedure, e.g. "uniaxialMaterial".
	Command string `json:"command"`

	// Category is the category of the entity created, or CategoryControl.
	Category Category `json:"category"`

	// OpType is the op_type literal, or "".
	OpType string `json:"op_type,omitempty"`

	// Tag is the allocated tag, or 0 for control commands.
	Tag int `json:"tag,omitempty"`

	// Tokens are the arguments after the procedure name.
	Tokens []Token `json:"tokens"`
}

// Line renders the invocation in transcript syntax.
func (inv Invocation) Line() string {
	if len(inv.Tokens) == 0 {
		return inv.Command
	}
	return inv.Command + " " + FormatTokens(inv.Tokens)
}

func (inv Invocation) String() string { return inv.Line() }

// Describe builds an Invocation from a procedure and its tokens, recovering
// category, op_type, and tag from their fixed positions.
func Describe(command string, tokens []Token) Invocation {
	inv := Invocation{
		Command:  command,
		Category: CategoryForCommand(command),
		Tokens:   tokens,
	}
	if inv.Category.Tagged() && !categories[inv.Category].bare && len(tokens) > 0 {
		inv.OpType, _ = tokens[0].AsString()
	} else if !inv.Category.Tagged() && len(tokens) > 0 {
		if s, ok := tokens[0].AsString(); ok && len(s) > 0 && s[0] != '-' {
			inv.OpType = s
		}
	}
	if pos := inv.Category.TagPosition(); pos >= 0 && pos < len(tokens) {
		if tag, ok := tokens[pos].AsInt(); ok {
			inv.Tag = int(tag)
		}
	}
	return inv
}

// Status is what the engine reports back for a command. Most commands report
// nothing; analyze and friends report a result code and possibly values.
type Status struct {
	// Code is the engine's return code. Zero means success.
	Code int `json:"code"`

	// Values holds numeric results, e.g. from nodeDisp.
	Values []float64 `json:"values,omitempty"`

	// Message is any text the engine printed for the command.
	Message string `json:"message,omitempty"`
}

// OK reports whether the engine returned success.
func (s Status) OK() bool { return s.Code == 0 }

// Backend receives encoded commands. Implementations either forward them
// to a live engine or record them. A Backend is used by one session at a
// time and need not be safe for concurrent use.
type Backend interface {
	// Emit delivers one invocation. A live backend returns an
	// EngineInvocationError when the engine rejects it.
	Emit(ctx context.Context, inv Invocation) (Status, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, inv Invocation) (Status, error)

// Emit calls f.
func (f BackendFunc) Emit(ctx context.Context, inv Invocation) (Status, error) {
	return f(ctx, inv)
}

// BackendName returns the backend's name if it has one, else its type.
func BackendName(b Backend) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}

// Event describes one emission attempt, successful or not.
type Event struct {
	Session    string
	Backend    string
	Invocation Invocation
	Status     Status
	Err        error
	Duration   time.Duration
}

// Observer is notified after every emission attempt and every rejected
// construction. Observers must not call back into the session.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}
