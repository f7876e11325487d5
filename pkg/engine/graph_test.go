package engine

import (
	"strings"
	"testing"

	"github.com/o3go/o3go/pkg/command"
)

func key(c command.Category, tag int) Key { return Key{Category: c, Tag: tag} }

// TestGraphLevels tests definition levels of a small frame
func TestGraphLevels(t *testing.T) {
	g := NewGraph()
	n1, n2 := key(command.CategoryNode, 1), key(command.CategoryNode, 2)
	mat := key(command.CategoryUniaxialMaterial, 1)
	unused := key(command.CategoryUniaxialMaterial, 2)
	ele := key(command.CategoryElement, 1)

	g.Add(n1, "node")
	g.Add(n2, "node")
	g.Add(mat, "uniaxialMaterial Elastic")
	g.Add(unused, "uniaxialMaterial Elastic")
	g.Add(ele, "element Truss", n1, n2, mat)

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if len(levels[0]) != 4 || levels[0][0] != n1 {
		t.Errorf("level 0 = %v", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0] != ele {
		t.Errorf("level 1 = %v", levels[1])
	}

	if got := g.Unreferenced(command.CategoryUniaxialMaterial); len(got) != 1 || got[0] != unused {
		t.Errorf("unreferenced materials = %v", got)
	}
	if deps := g.Dependents(n1); len(deps) != 1 || deps[0] != ele {
		t.Errorf("dependents of node 1 = %v", deps)
	}
	if deps := g.Dependencies(ele); len(deps) != 3 {
		t.Errorf("dependencies of element = %v", deps)
	}
}

// TestGraphEmpty tests an empty graph
func TestGraphEmpty(t *testing.T) {
	levels, err := NewGraph().Levels()
	if err != nil || len(levels) != 0 {
		t.Errorf("Levels() = %v, %v", levels, err)
	}
}

// TestGraphCycle tests that a cycle is reported
func TestGraphCycle(t *testing.T) {
	g := NewGraph()
	a, b := key(command.CategoryUniaxialMaterial, 1), key(command.CategoryUniaxialMaterial, 2)
	g.Add(a, "a", b)
	g.Add(b, "b", a)
	if _, err := g.Levels(); err == nil {
		t.Error("expected cycle error")
	}
	if _, err := g.ToDOT(); err == nil {
		t.Error("expected ToDOT to fail on a cycle")
	}
}

// TestGraphToDOT tests DOT rendering
func TestGraphToDOT(t *testing.T) {
	g := NewGraph()
	n := key(command.CategoryNode, 1)
	g.Add(n, "node")
	g.Add(key(command.CategoryElement, 4), "element zeroLength", n)

	dot, err := g.ToDOT()
	if err != nil {
		t.Fatalf("ToDOT: %v", err)
	}
	for _, want := range []string{
		"digraph Model {",
		"cluster_level_1",
		`"element:4" -> "node:1";`,
		`fillcolor="lightblue"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}
