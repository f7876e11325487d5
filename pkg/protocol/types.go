// Package protocol defines the JSON-over-stdio protocol spoken between o3
// and an engine host process.
//
// The host writes READY once it can accept commands. The client then sends
// one CMD per invocation and waits for DONE or ERROR carrying the same id;
// the host may interleave EVENT messages with engine output. EXIT is sent by
// the host before it terminates, or by the client to ask it to.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/o3go/o3go/pkg/command"
)

// Version is the protocol version announced in READY.
const Version = "1"

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady indicates the host is ready to receive commands
	MessageTypeReady MessageType = "READY"
	// MessageTypeCommand carries one invocation from the client
	MessageTypeCommand MessageType = "CMD"
	// MessageTypeEvent carries engine output produced while running a command
	MessageTypeEvent MessageType = "EVENT"
	// MessageTypeDone indicates the engine accepted the command
	MessageTypeDone MessageType = "DONE"
	// MessageTypeError indicates the command failed
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit indicates the host is exiting, or asks it to
	MessageTypeExit MessageType = "EXIT"
)

// Error codes carried by ERROR messages.
const (
	// CodeRejected means the engine refused the command; Message is its diagnostic.
	CodeRejected = "rejected"
	// CodeInvalid means the message itself was malformed.
	CodeInvalid = "invalid"
	// CodeInternal means the host failed for reasons unrelated to the command.
	CodeInternal = "internal"
)

// Message is the base message structure for all protocol messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is sent when the host is ready to receive commands.
type ReadyMessage struct {
	Version  string            `json:"version"`
	Engine   string            `json:"engine"`
	Platform string            `json:"platform"`
	Arch     string            `json:"arch"`
	PID      int               `json:"pid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CommandMessage carries one invocation.
type CommandMessage struct {
	ID      string          `json:"id"`
	Seq     int             `json:"seq"`
	Command string          `json:"command"`
	Tokens  []command.Token `json:"tokens"`
	// Timeout is the per-command limit in seconds; 0 means none.
	Timeout int `json:"timeout,omitempty"`
}

// EventMessage carries engine output produced while running a command.
type EventMessage struct {
	CommandID string `json:"command_id"`
	Level     string `json:"level"` // info, warn, debug
	Message   string `json:"message"`
}

// DoneMessage indicates the engine accepted the command.
type DoneMessage struct {
	CommandID string         `json:"command_id"`
	Status    command.Status `json:"status"`
	Duration  float64        `json:"duration"` // seconds
}

// ErrorMessage indicates a command or the host failed.
type ErrorMessage struct {
	CommandID string            `json:"command_id,omitempty"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

// ExitMessage is sent before the host terminates.
type ExitMessage struct {
	Reason        string `json:"reason"`
	ExitCode      int    `json:"exit_code"`
	CommandsTotal int    `json:"commands_total"`
}

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeCommand, MessageTypeEvent,
		MessageTypeDone, MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the command message is valid.
func (cmd *CommandMessage) Validate() error {
	if cmd.ID == "" {
		return fmt.Errorf("command ID is required")
	}
	if cmd.Command == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	for i, t := range cmd.Tokens {
		if !t.Valid() {
			return fmt.Errorf("token %d is invalid", i)
		}
	}
	return nil
}

// Validate checks if the event message is valid.
func (evt *EventMessage) Validate() error {
	if evt.CommandID == "" {
		return fmt.Errorf("command ID is required")
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	validLevels := map[string]bool{"info": true, "warn": true, "debug": true}
	if !validLevels[evt.Level] {
		return fmt.Errorf("invalid event level: %s", evt.Level)
	}
	return nil
}

// Validate checks if the error message is valid.
func (e *ErrorMessage) Validate() error {
	switch e.Code {
	case CodeRejected, CodeInvalid, CodeInternal:
		return nil
	default:
		return fmt.Errorf("invalid error code: %s", e.Code)
	}
}

// Err converts the message into a command error. Rejections become engine
// invocation errors with the message as diagnostic.
func (e *ErrorMessage) Err() error {
	if e.Code == CodeRejected {
		return command.NewEngineInvocationError(e.Message, nil)
	}
	return command.NewBackendError("engine host error", fmt.Errorf("%s: %s", e.Code, e.Message))
}
