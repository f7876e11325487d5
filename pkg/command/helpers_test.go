package command

import (
	"context"
	"testing"
)

// recorder is a minimal backend that keeps every invocation.
type recorder struct {
	invs []Invocation
	fail map[int]error
}

func (r *recorder) Emit(ctx context.Context, inv Invocation) (Status, error) {
	r.invs = append(r.invs, inv)
	if err, ok := r.fail[inv.Seq]; ok {
		return Status{}, err
	}
	return Status{}, nil
}

func (r *recorder) Name() string { return "test" }

func (r *recorder) lines() []string {
	out := make([]string, len(r.invs))
	for i, inv := range r.invs {
		out[i] = inv.Line()
	}
	return out
}

// def is an ad hoc Definition.
type def struct {
	schema *Schema
	vals   Values
}

func (d def) Schema() *Schema { return d.schema }
func (d def) Values() Values  { return d.vals }

var (
	elasticSchema = MustSchema(CategoryUniaxialMaterial, "", "Elastic",
		Required("E", TypeFloat),
		Required("eta", TypeFloat),
		Optional("Eneg", TypeFloat),
	)

	multiLinearSchema = MustSchema(CategoryUniaxialMaterial, "", "ElasticMultiLinear",
		Required("eta", TypeFloat),
		FlagPacket("strain", "-strain", TypeFloat),
		FlagPacket("stress", "-stress", TypeFloat),
	)

	castSchema = MustSchema(CategoryUniaxialMaterial, "", "Cast",
		Required("n", TypeInt),
		Required("bo", TypeFloat),
		Optional("a1", TypeFloat),
		Optional("a2", TypeFloat),
		Optional("a3", TypeFloat),
		Optional("a4", TypeFloat),
	)

	nodeSchema = MustSchema(CategoryNode, "", "",
		Packet("coords", TypeFloat),
		FlagPacket("mass", "-mass", TypeFloat),
	)

	trussSchema = MustSchema(CategoryElement, "", "Truss",
		Packet("nodes", TypeRef).Of(CategoryNode).WithLen(2),
		Required("area", TypeFloat),
		Required("mat", TypeRef).Of(CategoryUniaxialMaterial),
	)

	analyzeSchema = MustSchema(CategoryControl, "analyze", "",
		Required("steps", TypeInt),
		Optional("dt", TypeFloat),
	)
)

func elastic(e, eta float64) def {
	return def{schema: elasticSchema, vals: Values{}.Float("E", e).Float("eta", eta)}
}

func newTestSession(t *testing.T) (*Session, *recorder) {
	t.Helper()

	rec := &recorder{}
	s, err := Open(context.Background(), ModelConfig{Dimensions: 2, DOFPerNode: 2}, rec)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	return s, rec
}

func mustNew(t *testing.T, s *Session, d Definition) *Object {
	t.Helper()

	obj, err := New(context.Background(), s, d)
	if err != nil {
		t.Fatalf("failed to construct %s: %v", d.Schema().Key(), err)
	}
	return obj
}

func tokensOf(vals ...interface{}) []Token {
	out := make([]Token, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case int:
			out[i] = Int(x)
		case float64:
			out[i] = Float(x)
		case string:
			out[i] = Str(x)
		default:
			panic("unsupported token value")
		}
	}
	return out
}
