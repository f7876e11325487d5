package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

// TestNewEngine tests that built-in policies are loaded unless disabled
func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		if !p.Builtin || !p.Enabled {
			t.Errorf("policy %s should be an enabled builtin", p.Name)
		}
		names = append(names, p.Name)
	}
	want := "analyze-steps,fixity-arity,nodal-vector,node-coordinates"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("policies = %s, want %s", got, want)
	}

	if n := len(newTestEngine(t, WithBuiltins(false)).ListPolicies()); n != 0 {
		t.Errorf("expected no policies without builtins, got %d", n)
	}
}

// TestBuiltinPolicies tests the built-in rules against representative commands
func TestBuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)
	model := Model{Dimensions: 2, DOFPerNode: 3}

	tests := []struct {
		name         string
		input        Input
		wantAllowed  bool
		wantWarnings int
		wantMessage  string
	}{
		{
			name:        "analyze with steps",
			input:       Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(10)}, "dt": {0.01}}},
			wantAllowed: true,
		},
		{
			name:        "analyze zero steps",
			input:       Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(0)}}},
			wantMessage: "analyze needs at least one step, got 0",
		},
		{
			name:        "analyze negative dt",
			input:       Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(1)}, "dt": {-0.5}}},
			wantMessage: "analyze time step must be positive",
		},
		{
			name:        "fix matching ndf",
			input:       Input{Command: "fix", Model: model, Fields: map[string][]interface{}{"node": {int64(1)}, "fixity": {int64(1), int64(1), int64(0)}}},
			wantAllowed: true,
		},
		{
			name:        "fix short",
			input:       Input{Command: "fix", Model: model, Fields: map[string][]interface{}{"node": {int64(1)}, "fixity": {int64(1), int64(1)}}},
			wantMessage: "fix on node 1 has 2 flags, model has ndf 3",
		},
		{
			name:        "fix bad flag",
			input:       Input{Command: "fix", Model: model, Fields: map[string][]interface{}{"node": {int64(1)}, "fixity": {int64(1), int64(2), int64(0)}}},
			wantMessage: "fixity flags are 0 or 1",
		},
		{
			name:        "node in 3d model",
			input:       Input{Command: "node", Tag: 4, Model: model, Fields: map[string][]interface{}{"coords": {0.0, 1.0, 2.0}}},
			wantMessage: "node 4 has 3 coordinates, model has ndm 2",
		},
		{
			name:         "load warns",
			input:        Input{Command: "load", Model: model, Fields: map[string][]interface{}{"node": {int64(2)}, "values": {1.0}}},
			wantAllowed:  true,
			wantWarnings: 1,
		},
		{
			name:         "node mass warns",
			input:        Input{Command: "node", Tag: 1, Model: model, Fields: map[string][]interface{}{"coords": {0.0, 0.0}, "mass": {1.0}}},
			wantAllowed:  true,
			wantWarnings: 1,
		},
		{
			name:        "undeclared model is not checked",
			input:       Input{Command: "node", Tag: 1, Fields: map[string][]interface{}{"coords": {0.0}}},
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eng.Evaluate(context.Background(), &tt.input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Allowed != tt.wantAllowed {
				t.Fatalf("Allowed = %v, want %v (violations %+v)", res.Allowed, tt.wantAllowed, res.Violations)
			}
			if len(res.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %+v, want %d", res.Warnings, tt.wantWarnings)
			}
			if tt.wantMessage != "" {
				if len(res.Violations) == 0 || !strings.Contains(res.Violations[0].Message, tt.wantMessage) {
					t.Errorf("violations = %+v, want message containing %q", res.Violations, tt.wantMessage)
				}
			}
			if len(res.EvaluatedPolicies) == 0 {
				t.Errorf("no policy evaluated for %s", tt.input.Command)
			}
			for _, name := range res.EvaluatedPolicies {
				p, err := eng.GetPolicy(name)
				if err != nil || !p.Applies(tt.input.Command) {
					t.Errorf("%s evaluated for %s", name, tt.input.Command)
				}
			}
		})
	}
}

// TestSetPolicies tests replacing loaded policies and per-violation severity
func TestSetPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	custom := Policy{
		Name:    "max-steps",
		Enabled: true,
		Rego: `package o3.custom

import rego.v1

deny contains violation if {
	input.command == "analyze"
	input.fields.steps[0] > 1000
	violation := {"message": "too many steps", "severity": "warning"}
}
`,
	}
	if err := eng.SetPolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("SetPolicies() error = %v", err)
	}
	p, err := eng.GetPolicy("max-steps")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if p.Severity != SeverityError || p.Builtin {
		t.Errorf("unexpected policy: %+v", p)
	}

	res, err := eng.Evaluate(ctx, &Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(5000)}}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !res.Allowed || len(res.Warnings) != 1 || res.Warnings[0].Policy != "max-steps" {
		t.Errorf("unexpected result: %+v", res)
	}

	bad := Policy{Name: "broken", Rego: "package o3.broken\n\ndeny contains"}
	if err := eng.SetPolicies(ctx, []Policy{bad}); err == nil {
		t.Errorf("expected compile error")
	}
	if _, err := eng.GetPolicy("max-steps"); err != nil {
		t.Errorf("failed reload must keep the previous policies: %v", err)
	}

	shadow := Policy{Name: "fixity-arity", Rego: custom.Rego}
	if err := eng.SetPolicies(ctx, []Policy{shadow}); err == nil {
		t.Errorf("expected error shadowing a builtin")
	}
	if _, err := eng.GetPolicy("max-steps"); err != nil {
		t.Errorf("shadowing reload must keep the previous policies: %v", err)
	}

	scoped := custom
	scoped.Name = "fix-only"
	scoped.Commands = []string{"fix"}
	if err := eng.SetPolicies(ctx, []Policy{scoped}); err != nil {
		t.Fatalf("SetPolicies() error = %v", err)
	}
	res, err = eng.Evaluate(ctx, &Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(5000)}}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("policy scoped to fix ran for analyze: %+v", res)
	}
	for _, name := range res.EvaluatedPolicies {
		if name == "fix-only" || name == "fixity-arity" {
			t.Errorf("%s evaluated for analyze", name)
		}
	}

	if err := eng.SetPolicies(ctx, nil); err != nil {
		t.Fatalf("SetPolicies(nil) error = %v", err)
	}
	if _, err := eng.GetPolicy("max-steps"); err == nil {
		t.Errorf("loaded policy should have been removed")
	}
	if len(eng.ListPolicies()) != 4 {
		t.Errorf("builtins must survive a reload")
	}
}

// TestEnableDisablePolicy tests toggling policies
func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	input := &Input{Command: "analyze", Fields: map[string][]interface{}{"steps": {int64(0)}}}

	if err := eng.DisablePolicy("analyze-steps"); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}
	res, _ := eng.Evaluate(ctx, input)
	if !res.Allowed || len(res.EvaluatedPolicies) != 0 {
		t.Errorf("disabled policy still evaluated: %+v", res)
	}

	if err := eng.EnablePolicy("analyze-steps"); err != nil {
		t.Fatalf("EnablePolicy() error = %v", err)
	}
	if res, _ := eng.Evaluate(ctx, input); res.Allowed {
		t.Errorf("enabled policy did not deny")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}
