package command

import "testing"

// TestNewSchemaRejects tests build-time schema checks
func TestNewSchemaRejects(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		command  string
		fields   []Field
	}{
		{"control without command", CategoryControl, "", nil},
		{"wrong procedure", CategoryNode, "element", nil},
		{"duplicate field", CategoryElement, "", []Field{Required("a", TypeInt), Required("a", TypeInt)}},
		{"required after optional", CategoryElement, "", []Field{Optional("a", TypeInt), Required("b", TypeInt)}},
		{"optional after flag", CategoryElement, "", []Field{Flag("a", "-a", TypeInt), Optional("b", TypeInt)}},
		{"flag without dash", CategoryElement, "", []Field{Flag("a", "a", TypeInt)}},
		{"duplicate marker", CategoryElement, "", []Field{Flag("a", "-x", TypeInt), Flag("b", "-x", TypeInt)}},
		{"enum without choices", CategoryElement, "", []Field{Required("a", TypeEnum)}},
		{"ref without category", CategoryElement, "", []Field{Required("a", TypeRef)}},
		{"ref to control", CategoryElement, "", []Field{Required("a", TypeRef).Of(CategoryControl)}},
		{"length on scalar", CategoryElement, "", []Field{Required("a", TypeInt).WithLen(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSchema(tt.category, tt.command, "X", tt.fields...); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

// TestSchemaUsage tests the synopsis rendering
func TestSchemaUsage(t *testing.T) {
	tests := []struct {
		schema *Schema
		want   string
	}{
		{elasticSchema, "uniaxialMaterial Elastic <tag> E eta [Eneg]"},
		{multiLinearSchema, "uniaxialMaterial ElasticMultiLinear <tag> eta [-strain strain...] [-stress stress...]"},
		{nodeSchema, "node <tag> coords... [-mass mass...]"},
		{analyzeSchema, "analyze steps [dt]"},
	}
	for _, tt := range tests {
		if got := tt.schema.Usage(); got != tt.want {
			t.Errorf("Usage = %q, want %q", got, tt.want)
		}
	}
}

// TestSchemaEncode tests session-free encoding and enum literals
func TestSchemaEncode(t *testing.T) {
	schema := MustSchema(CategoryUniaxialMaterial, "", "BarSlip",
		Required("fc", TypeFloat),
		Required("bsFlag", TypeEnum).OneOf("Strong", "Weak"),
		Optional("eleType", TypeEnum).OneOf("beamtocolumn", "other"),
	)

	toks, err := schema.Encode(4, Values{}.Float("fc", 30).Str("bsFlag", "Weak"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := tokensOf("BarSlip", 4, 30.0, "Weak")
	if !EqualTokens(toks, want) {
		t.Errorf("tokens = %v, want %v", toks, want)
	}

	if _, err := schema.Encode(1, Values{}.Float("fc", 30).Str("bsFlag", "Medium")); !IsParameter(err) {
		t.Errorf("expected parameter error for bad enum, got %v", err)
	}

	toks, err = schema.Encode(1, Values{}.Int("fc", 30).Str("bsFlag", "Strong"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if toks[2].Kind() != TokenFloat {
		t.Errorf("int literal not coerced to float: %s", toks[2].Kind())
	}
}
