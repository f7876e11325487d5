package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but lets the command through.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the command.
	SeverityError Severity = "error"
)

// Blocks reports whether a violation of this severity rejects the command.
func (s Severity) Blocks() bool {
	return s == SeverityError
}

// Policy is a rego module whose deny rules are checked against every
// command.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity applies to violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with o3.
	Builtin bool `json:"builtin"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`

	// Commands limits the policy to these engine procedures; empty means
	// every command.
	Commands []string `json:"commands,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// UpdatedAt is when the policy was last loaded.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is one deny result.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Command and Seq locate the offending invocation.
	Command string `json:"command"`
	Seq     int    `json:"seq"`
}

// Result is the outcome of evaluating every enabled policy against one
// command.
type Result struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that do not block.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies see as input.
type Input struct {
	Command  string `json:"command"`
	OpType   string `json:"op_type"`
	Category string `json:"category"`
	Tag      int    `json:"tag"`
	Seq      int    `json:"seq"`

	// Args are the tokens after the command name.
	Args []interface{} `json:"args"`

	// Fields are the args split by field name when the command's schema is
	// known. References appear as tags and switches as empty lists.
	Fields map[string][]interface{} `json:"fields"`

	// Model is the declared model, once the session has declared it.
	Model Model `json:"model"`
}

// Model holds the model builder's dimensions.
type Model struct {
	Dimensions int `json:"ndm"`
	DOFPerNode int `json:"ndf"`
}

// Applies reports whether the policy is evaluated for cmd.
func (p *Policy) Applies(cmd string) bool {
	if len(p.Commands) == 0 {
		return true
	}
	for _, c := range p.Commands {
		if c == cmd {
			return true
		}
	}
	return false
}
