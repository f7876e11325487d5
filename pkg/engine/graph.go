package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/o3go/o3go/pkg/command"
)

// Key identifies a defined entity in the domain.
type Key struct {
	Category command.Category
	Tag      int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Category, k.Tag)
}

// Graph records which entities reference which. Edges point from the
// referenced entity to the one that references it, so a topological order
// is a valid definition order.
type Graph struct {
	nodes      map[Key]string
	dependents map[Key][]Key
	deps       map[Key][]Key
}

// NewGraph creates an empty reference graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[Key]string),
		dependents: make(map[Key][]Key),
		deps:       make(map[Key][]Key),
	}
}

// Add records an entity and the entities it references. References to
// entities not in the graph are kept as edges but do not create nodes.
func (g *Graph) Add(k Key, label string, refs ...Key) {
	g.nodes[k] = label
	for _, r := range refs {
		g.deps[k] = append(g.deps[k], r)
		g.dependents[r] = append(g.dependents[r], k)
	}
}

// Len returns the number of entities.
func (g *Graph) Len() int { return len(g.nodes) }

// Dependents returns the entities that reference k.
func (g *Graph) Dependents(k Key) []Key {
	return append([]Key(nil), g.dependents[k]...)
}

// Dependencies returns the entities k references.
func (g *Graph) Dependencies(k Key) []Key {
	return append([]Key(nil), g.deps[k]...)
}

// Unreferenced returns the entities of the given categories that nothing
// references, sorted. Unused materials usually point at a modelling slip.
func (g *Graph) Unreferenced(cats ...command.Category) []Key {
	want := make(map[command.Category]bool, len(cats))
	for _, c := range cats {
		want[c] = true
	}
	var out []Key
	for k := range g.nodes {
		if want[k.Category] && len(g.dependents[k]) == 0 {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Levels groups entities by definition depth using Kahn's algorithm.
// Level 0 holds entities without references; each later level only
// references entities of earlier levels.
func (g *Graph) Levels() ([][]Key, error) {
	inDegree := make(map[Key]int, len(g.nodes))
	for k := range g.nodes {
		for _, d := range g.deps[k] {
			if _, ok := g.nodes[d]; ok {
				inDegree[k]++
			}
		}
	}

	var current []Key
	for k := range g.nodes {
		if inDegree[k] == 0 {
			current = append(current, k)
		}
	}

	var levels [][]Key
	processed := 0
	for len(current) > 0 {
		sortKeys(current)
		levels = append(levels, current)
		processed += len(current)

		var next []Key
		for _, k := range current {
			for _, dependent := range g.dependents[k] {
				if _, ok := g.nodes[dependent]; !ok {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(g.nodes) {
		return nil, fmt.Errorf("reference graph has a cycle: %d of %d entities ordered", processed, len(g.nodes))
	}
	return levels, nil
}

// ToDOT renders the graph in Graphviz DOT format, one cluster per level.
func (g *Graph) ToDOT() (string, error) {
	levels, err := g.Levels()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("digraph Model {\n")
	sb.WriteString("  rankdir=BT;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, keys := range levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\\n%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				k, k, g.nodes[k], categoryColor(k.Category)))
		}
		sb.WriteString("  }\n\n")
	}

	var keys []Key
	for k := range g.deps {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		for _, d := range g.deps[k] {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", k, d))
		}
	}

	sb.WriteString("}\n")
	return sb.String(), nil
}

func categoryColor(c command.Category) string {
	switch c {
	case command.CategoryNode:
		return "lightblue"
	case command.CategoryUniaxialMaterial, command.CategoryNDMaterial, command.CategorySection:
		return "lightyellow"
	case command.CategoryElement:
		return "lightgreen"
	case command.CategoryTimeSeries, command.CategoryPattern:
		return "lightpink"
	}
	return "white"
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Tag < keys[j].Tag
	})
}
