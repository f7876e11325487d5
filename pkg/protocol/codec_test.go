package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/o3go/o3go/pkg/command"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "encode ready message",
			msgType: MessageTypeReady,
			data: &ReadyMessage{
				Version:  Version,
				Engine:   "reference",
				Platform: "linux",
				Arch:     "amd64",
				PID:      1234,
			},
		},
		{
			name:    "encode event message",
			msgType: MessageTypeEvent,
			data: &EventMessage{
				CommandID: "cmd-1",
				Level:     "warn",
				Message:   "WARNING: analysis did not converge",
			},
		},
		{
			name:    "encode done message",
			msgType: MessageTypeDone,
			data: &DoneMessage{
				CommandID: "cmd-1",
				Status:    command.Status{Code: 0, Values: []float64{0.5}},
				Duration:  0.002,
			},
		},
		{
			name:    "encode error message",
			msgType: MessageTypeError,
			data: &ErrorMessage{
				CommandID: "cmd-1",
				Code:      CodeRejected,
				Message:   "WARNING material with tag 1 already exists",
			},
		},
		{
			name:    "encode exit message",
			msgType: MessageTypeExit,
			data: &ExitMessage{
				Reason:        "stdin closed",
				CommandsTotal: 5,
			},
		},
		{
			name:    "invalid message type",
			msgType: MessageType("INVALID"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)

			err := enc.Encode(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				line := strings.TrimSpace(buf.String())
				var msg Message
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Output is not valid JSON: %v", err)
				}
				if msg.Type != tt.msgType {
					t.Errorf("Message type = %v, want %v", msg.Type, tt.msgType)
				}
			}
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	in := &CommandMessage{
		ID:      "cmd-7",
		Seq:     7,
		Command: "uniaxialMaterial",
		Tokens:  []command.Token{command.Str("Elastic"), command.Int(1), command.Float(2), command.Str("3")},
	}
	if err := enc.EncodeCommand(in); err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}

	dec := NewDecoder(&buf)
	out, err := dec.DecodeCommand()
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if out.ID != in.ID || out.Seq != in.Seq || out.Command != in.Command {
		t.Errorf("DecodeCommand() = %+v, want %+v", out, in)
	}
	if !command.EqualTokens(out.Tokens, in.Tokens) {
		t.Errorf("tokens = %v, want %v", out.Tokens, in.Tokens)
	}
	if out.Tokens[2].Kind() != command.TokenFloat {
		t.Errorf("float token decoded as %s", out.Tokens[2].Kind())
	}

	if _, err := dec.Decode(); err != io.EOF {
		t.Errorf("Decode() at end = %v, want io.EOF", err)
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		msgType MessageType
	}{
		{
			name:    "decode ready message",
			input:   `{"type":"READY","timestamp":"2024-01-01T00:00:00Z","data":{"version":"1","engine":"reference","pid":1}}`,
			msgType: MessageTypeReady,
		},
		{
			name:    "decode done message",
			input:   `{"type":"DONE","timestamp":"2024-01-01T00:00:00Z","data":{"command_id":"c","status":{"code":-3}}}`,
			msgType: MessageTypeDone,
		},
		{
			name:    "invalid json",
			input:   `{not json}`,
			wantErr: true,
		},
		{
			name:    "invalid type",
			input:   `{"type":"NOPE","timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr: true,
		},
		{
			name:    "empty line",
			input:   "\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input))
			msg, err := dec.Decode()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && msg.Type != tt.msgType {
				t.Errorf("Decode() type = %v, want %v", msg.Type, tt.msgType)
			}
		})
	}
}

func TestDecodeCommandRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a command", `{"type":"DONE","timestamp":"2024-01-01T00:00:00Z","data":{"command_id":"c"}}`},
		{"missing id", `{"type":"CMD","timestamp":"2024-01-01T00:00:00Z","data":{"command":"node","tokens":[]}}`},
		{"missing command", `{"type":"CMD","timestamp":"2024-01-01T00:00:00Z","data":{"id":"c","tokens":[]}}`},
		{"bad token", `{"type":"CMD","timestamp":"2024-01-01T00:00:00Z","data":{"id":"c","command":"node","tokens":[{}]}}`},
		{"no data", `{"type":"CMD","timestamp":"2024-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input))
			if _, err := dec.DecodeCommand(); err == nil {
				t.Errorf("DecodeCommand() expected error")
			}
		})
	}
}

func TestErrorMessageErr(t *testing.T) {
	rejected := (&ErrorMessage{Code: CodeRejected, Message: "WARNING bad tag"}).Err()
	if !command.IsEngineInvocation(rejected) {
		t.Errorf("rejection mapped to %v", rejected)
	}
	internal := (&ErrorMessage{Code: CodeInternal, Message: "panic"}).Err()
	if command.KindOf(internal) != command.KindBackend {
		t.Errorf("internal error mapped to %v", internal)
	}
	if err := (&ErrorMessage{Code: "EXEC_FAILED"}).Validate(); err == nil {
		t.Errorf("Validate() accepted unknown code")
	}
}
