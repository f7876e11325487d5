package command

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a command failure.
type ErrorKind string

const (
	// KindParameter indicates a missing, unknown, or ill-typed field value.
	KindParameter ErrorKind = "parameter"

	// KindParameterOrder indicates a trailing optional field was given after
	// an absent one. The engine protocol is positional, so the value would be
	// read in the wrong slot.
	KindParameterOrder ErrorKind = "parameter_order"

	// KindReference indicates a reference field holds no valid object
	// or an object of the wrong category.
	KindReference ErrorKind = "reference"

	// KindContextMismatch indicates a reference to an object that was
	// constructed under a different session.
	KindContextMismatch ErrorKind = "context_mismatch"

	// KindEngineInvocation indicates the engine rejected or failed a command.
	KindEngineInvocation ErrorKind = "engine_invocation"

	// KindRegistryExhausted indicates a tag counter ran past the protocol's
	// integer range. Fatal for the category.
	KindRegistryExhausted ErrorKind = "registry_exhausted"

	// KindBackend indicates the dispatch backend itself failed (I/O, transport).
	KindBackend ErrorKind = "backend"

	// KindPolicy indicates a policy guard refused the command.
	KindPolicy ErrorKind = "policy"
)

// Error is the error type returned by command construction and dispatch.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Command is the engine procedure, e.g. "uniaxialMaterial".
	Command string `json:"command,omitempty"`

	// OpType is the specific command name, e.g. "Elastic".
	OpType string `json:"op_type,omitempty"`

	// Field is the offending field, if any.
	Field string `json:"field,omitempty"`

	// Diagnostic is the engine's own message, uninterpreted.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	subject := e.Command
	if e.OpType != "" {
		if subject != "" {
			subject += " "
		}
		subject += e.OpType
	}

	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if subject != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, subject, e.Message)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, &Error{Kind: KindReference}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithField sets the offending field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithCommand sets the command and op type the error belongs to.
func (e *Error) WithCommand(command, opType string) *Error {
	e.Command = command
	e.OpType = opType
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewParameterError creates a parameter error.
func NewParameterError(field, format string, args ...interface{}) *Error {
	return newError(KindParameter, format, args...).WithField(field)
}

// NewParameterOrderError creates a parameter order error for field, which
// was given after the absent optional field missing.
func NewParameterOrderError(field, missing string) *Error {
	return newError(KindParameterOrder, "optional field given after absent optional %q", missing).
		WithField(field)
}

// NewReferenceError creates a reference error.
func NewReferenceError(field, format string, args ...interface{}) *Error {
	return newError(KindReference, format, args...).WithField(field)
}

// NewContextMismatchError creates a context mismatch error.
func NewContextMismatchError(field, owner, current string) *Error {
	return newError(KindContextMismatch, "reference belongs to session %s, not %s", owner, current).
		WithField(field)
}

// NewEngineInvocationError wraps an engine failure, keeping its diagnostic text.
func NewEngineInvocationError(diagnostic string, err error) *Error {
	return &Error{
		Kind:       KindEngineInvocation,
		Message:    "engine rejected command",
		Diagnostic: diagnostic,
		Err:        err,
	}
}

// NewBackendError wraps a backend failure that is not an engine rejection.
func NewBackendError(message string, err error) *Error {
	return &Error{Kind: KindBackend, Message: message, Err: err}
}

// NewPolicyError creates a policy refusal.
func NewPolicyError(message string) *Error {
	return &Error{Kind: KindPolicy, Message: message}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// KindOf returns the kind of a command error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	k, _ := kindOf(err)
	return k
}

// IsParameter returns true if the error is a parameter error.
func IsParameter(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindParameter
}

// IsParameterOrder returns true if the error is a parameter order error.
func IsParameterOrder(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindParameterOrder
}

// IsReference returns true if the error is a reference error.
func IsReference(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindReference
}

// IsContextMismatch returns true if the error is a context mismatch error.
func IsContextMismatch(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindContextMismatch
}

// IsEngineInvocation returns true if the engine rejected the command.
func IsEngineInvocation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindEngineInvocation
}

// IsPolicy returns true if a policy guard refused the command.
func IsPolicy(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPolicy
}

// IsFatal returns true if the session can no longer allocate tags for the
// category involved.
func IsFatal(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRegistryExhausted
}

// IsConstruction returns true for errors raised before anything was dispatched.
func IsConstruction(err error) bool {
	switch KindOf(err) {
	case KindParameter, KindParameterOrder, KindReference, KindContextMismatch:
		return true
	}
	return false
}
