package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/o3go/o3go/pkg/command"
)

// schemaMap is a minimal Schemas implementation.
type schemaMap map[string]*command.Schema

func (m schemaMap) Lookup(cmd, opType string) (*command.Schema, bool) {
	if s, ok := m[cmd+"."+opType]; ok {
		return s, true
	}
	s, ok := m[cmd]
	return s, ok
}

func testSchemas() schemaMap {
	m := schemaMap{}
	for _, s := range []*command.Schema{
		command.MustSchema(command.CategoryNode, "", "",
			command.Packet("coords", command.TypeFloat),
			command.FlagPacket("mass", "-mass", command.TypeFloat)),
		command.MustSchema(command.CategoryUniaxialMaterial, "", "Elastic",
			command.Required("E", command.TypeFloat),
			command.Required("eta", command.TypeFloat),
			command.Optional("Eneg", command.TypeFloat)),
		command.MustSchema(command.CategoryElement, "", "Truss",
			command.Packet("nodes", command.TypeRef).Of(command.CategoryNode).WithLen(2),
			command.Required("area", command.TypeFloat),
			command.Required("mat", command.TypeRef).Of(command.CategoryUniaxialMaterial)),
		command.MustSchema(command.CategoryRecorder, "", "Node",
			command.Flag("file", "-file", command.TypeString),
			command.FlagPacket("nodes", "-node", command.TypeRef).Of(command.CategoryNode)),
		command.MustSchema(command.CategoryControl, "analysis", "Static"),
		command.MustSchema(command.CategoryControl, "analysis", "Transient"),
		command.MustSchema(command.CategoryControl, "integrator", "LoadControl",
			command.Required("dlambda", command.TypeFloat)),
		command.MustSchema(command.CategoryControl, "loadConst", "",
			command.Flag("time", "-time", command.TypeFloat)),
	} {
		m[s.Key()] = s
	}
	return m
}

type step struct {
	cmd    string
	tokens []command.Token
	reject string
}

func run(t *testing.T, e *Engine, steps []step) {
	t.Helper()
	ctx := context.Background()
	for i, s := range steps {
		_, err := e.Invoke(ctx, s.cmd, s.tokens)
		if s.reject == "" {
			if err != nil {
				t.Fatalf("step %d %s: unexpected error %v", i, s.cmd, err)
			}
			continue
		}
		var cerr *command.Error
		if !errors.As(err, &cerr) || cerr.Kind != command.KindEngineInvocation {
			t.Fatalf("step %d %s: expected rejection, got %v", i, s.cmd, err)
		}
		if !strings.Contains(cerr.Diagnostic, s.reject) {
			t.Errorf("step %d %s: diagnostic %q does not mention %q", i, s.cmd, cerr.Diagnostic, s.reject)
		}
	}
}

var (
	S = command.Str
	I = command.Int
	F = command.Float
)

func model2D() step {
	return step{cmd: "model", tokens: []command.Token{S("basic"), S("-ndm"), I(2), S("-ndf"), I(2)}}
}

// TestEngineDomain tests tag bookkeeping and reference checks
func TestEngineDomain(t *testing.T) {
	e := New(WithSchemas(testSchemas()))

	run(t, e, []step{
		{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}, reject: "no model defined"},
		model2D(),
		{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}},
		{cmd: "node", tokens: []command.Token{I(2), F(1), F(0), S("-mass"), F(5), F(5)}},
		{cmd: "node", tokens: []command.Token{I(2), F(2), F(0)}, reject: "tag already in use"},
		{cmd: "node", tokens: []command.Token{I(3), F(2), F(0), F(1)}, reject: "ndm = 2"},
		{cmd: "node", tokens: []command.Token{I(3), F(2), F(0), S("-mass"), F(1)}, reject: "ndf = 2"},
		{cmd: "uniaxialMaterial", tokens: []command.Token{S("Elastic"), I(1), F(2e8), F(0)}},
		{cmd: "uniaxialMaterial", tokens: []command.Token{S("Elastic"), I(2), F(2e8)}, reject: "invalid arguments"},
		{cmd: "uniaxialMaterial", tokens: []command.Token{S("Steel99"), I(3)}},
		{cmd: "element", tokens: []command.Token{S("Truss"), I(1), I(1), I(2), F(0.5), I(1)}},
		{cmd: "element", tokens: []command.Token{S("Truss"), I(2), I(1), I(9), F(0.5), I(1)}, reject: "node with tag 9 not found"},
		{cmd: "element", tokens: []command.Token{S("Truss"), I(3), I(1), I(2), F(0.5), I(7)}, reject: "uniaxial_material with tag 7 not found"},
		{cmd: "recorder", tokens: []command.Token{S("Node"), S("-file"), S("disp.out"), S("-node"), I(1), I(2)}},
		{cmd: "recorder", tokens: []command.Token{S("Node"), S("-file"), S("vel.out")}},
	})

	if got := e.Defined(command.CategoryNode); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("nodes = %v", got)
	}
	if got := e.Defined(command.CategoryRecorder); len(got) != 2 || got[1] != 2 {
		t.Errorf("recorder tags = %v, want engine-assigned 1, 2", got)
	}
	if got := e.Defined(command.CategoryElement); len(got) != 1 {
		t.Errorf("rejected elements were defined: %v", got)
	}
	if ent, ok := e.Entity(command.CategoryElement, 1); !ok || ent.OpType != "Truss" || ent.Line != "element Truss 1 1 2 0.5 1" {
		t.Errorf("element 1 = %+v, %v", ent, ok)
	}

	sum := e.Summary()
	if sum.Dimensions != 2 || sum.DOFPerNode != 2 || sum.Counts[command.CategoryUniaxialMaterial] != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

// TestEngineStrict tests rejection of commands without a schema
func TestEngineStrict(t *testing.T) {
	e := New(WithSchemas(testSchemas()), WithStrict(true))
	run(t, e, []step{
		model2D(),
		{cmd: "uniaxialMaterial", tokens: []command.Token{S("Steel99"), I(1)}, reject: "unknown command or type"},
		{cmd: "frobnicate", reject: "unknown command"},
	})
}

// TestEnginePseudoTime tests analysis time bookkeeping
func TestEnginePseudoTime(t *testing.T) {
	var output []string
	e := New(WithSchemas(testSchemas()), WithOutput(func(level, msg string) {
		output = append(output, level+": "+msg)
	}))

	run(t, e, []step{
		model2D(),
		{cmd: "analyze", tokens: []command.Token{I(10)}, reject: "no analysis defined"},
		{cmd: "integrator", tokens: []command.Token{S("LoadControl"), F(0.1)}},
		{cmd: "analysis", tokens: []command.Token{S("Static")}},
		{cmd: "analyze", tokens: []command.Token{I(10)}},
	})
	if got := e.Time(); got < 0.999 || got > 1.001 {
		t.Errorf("time after static analysis = %v, want 1", got)
	}

	run(t, e, []step{
		{cmd: "loadConst", tokens: []command.Token{S("-time"), F(0)}},
		{cmd: "wipeAnalysis"},
		{cmd: "analyze", tokens: []command.Token{I(1)}, reject: "no analysis defined"},
		{cmd: "analysis", tokens: []command.Token{S("Transient")}},
		{cmd: "analyze", tokens: []command.Token{I(5)}, reject: "positive time step"},
		{cmd: "analyze", tokens: []command.Token{I(0), F(0.01)}, reject: "positive integer"},
		{cmd: "analyze", tokens: []command.Token{I(5), F(0.02)}},
	})

	status, err := e.Invoke(context.Background(), "getTime", nil)
	if err != nil || len(status.Values) != 1 || status.Values[0] < 0.0999 || status.Values[0] > 0.1001 {
		t.Errorf("getTime = %+v, %v", status, err)
	}
	if len(output) != 2 || !strings.HasPrefix(output[1], "info: analyze: 5 steps") {
		t.Errorf("output = %q", output)
	}

	run(t, e, []step{{cmd: "setTime", tokens: []command.Token{F(3)}}})
	if e.Time() != 3 {
		t.Errorf("time after setTime = %v", e.Time())
	}
}

// TestEngineWipe tests that wipe clears the domain and the model
func TestEngineWipe(t *testing.T) {
	e := New(WithSchemas(testSchemas()))
	run(t, e, []step{
		model2D(),
		{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}},
		{cmd: "wipe"},
		{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}, reject: "no model defined"},
		model2D(),
		{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}},
	})
	if e.Graph().Len() != 1 {
		t.Errorf("graph has %d entities after wipe and redefinition", e.Graph().Len())
	}
}

// TestEngineModel tests model builder validation
func TestEngineModel(t *testing.T) {
	tests := []struct {
		name   string
		tokens []command.Token
		reject string
		ndf    int
	}{
		{name: "explicit", tokens: []command.Token{S("basic"), S("-ndm"), I(3), S("-ndf"), I(6)}, ndf: 6},
		{name: "default ndf", tokens: []command.Token{S("basic"), S("-ndm"), I(2)}, ndf: 3},
		{name: "bad builder", tokens: []command.Token{S("quick")}, reject: "unknown builder"},
		{name: "bad ndm", tokens: []command.Token{S("basic"), S("-ndm"), I(4)}, reject: "-ndm"},
		{name: "bad ndf", tokens: []command.Token{S("basic"), S("-ndm"), I(2), S("-ndf"), I(7)}, reject: "-ndf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			run(t, e, []step{{cmd: "model", tokens: tt.tokens, reject: tt.reject}})
			if tt.reject == "" && e.Summary().DOFPerNode != tt.ndf {
				t.Errorf("ndf = %d, want %d", e.Summary().DOFPerNode, tt.ndf)
			}
		})
	}
}

// TestEngineCancelled tests that a cancelled context is not a rejection
func TestEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Invoke(ctx, "wipe", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}
