// Package catalog declares the entities of the engine's command language:
// a schema per command and op type, and a typed Go definition for each
// that callers pass to command.New.
//
// The schemas are plain data. The core encodes any of them the same way,
// and the reference engine uses them to decode arguments and locate
// references.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/o3go/o3go/pkg/command"
)

// Registry maps (command, op type) to schemas. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*command.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*command.Schema)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry holding every built-in schema.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, s := range builtins() {
			if err := defaultRegistry.Register(s); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}

// Register adds a schema. A schema with the same key is an error.
func (r *Registry) Register(s *command.Schema) error {
	if s == nil {
		return fmt.Errorf("nil schema")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.schemas[s.Key()]; dup {
		return fmt.Errorf("schema %s already registered", s.Key())
	}
	r.schemas[s.Key()] = s
	return nil
}

// Lookup returns the schema for a command and op type. Commands whose first
// argument is not an op type are found by command alone, so a control
// command such as "analyze" matches whatever Describe reported.
func (r *Registry) Lookup(cmd, opType string) (*command.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if opType != "" {
		if s, ok := r.schemas[cmd+"."+opType]; ok {
			return s, true
		}
	}
	s, ok := r.schemas[cmd]
	return s, ok
}

// All returns every schema sorted by key.
func (r *Registry) All() []*command.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*command.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

func builtins() []*command.Schema {
	var all []*command.Schema
	for _, group := range [][]*command.Schema{
		nodeSchemas,
		uniaxialSchemas,
		ndSchemas,
		elementSchemas,
		layerSchemas,
		seriesSchemas,
		patternSchemas,
		recorderSchemas,
		controlSchemas,
	} {
		all = append(all, group...)
	}
	return all
}

// Shorthands for the common field shapes.

func num(name string) command.Field { return command.Required(name, command.TypeFloat) }

func optNum(name string) command.Field { return command.Optional(name, command.TypeFloat) }

func integer(name string) command.Field { return command.Required(name, command.TypeInt) }

func ref(name string, cats ...command.Category) command.Field {
	return command.Required(name, command.TypeRef).Of(cats...)
}

func floatFlag(name string) command.Field {
	return command.Flag(name, "-"+name, command.TypeFloat)
}
