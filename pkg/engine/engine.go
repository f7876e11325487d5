package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
)

// Schemas resolves the schema of a command so the engine can locate
// reference tokens. The catalog implements it.
type Schemas interface {
	Lookup(command, opType string) (*command.Schema, bool)
}

// Entity is one defined object in the domain.
type Entity struct {
	Key
	OpType string
	Line   string
}

// Engine is an in-memory dry-run engine. It keeps the bookkeeping a real
// engine does before any numerics: tags per category, references between
// entities, the model dimensions and the analysis pseudo-time. It is safe
// for concurrent use.
type Engine struct {
	mu      sync.Mutex
	schemas Schemas
	strict  bool
	out     func(level, msg string)
	logger  zerolog.Logger

	modelDefined bool
	ndm, ndf     int

	defined  map[command.Category]map[int]*Entity
	hidden   map[command.Category]int
	graph    *Graph
	commands int

	analysis  string
	increment float64
	time      float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSchemas enables argument and reference checking.
func WithSchemas(s Schemas) Option {
	return func(e *Engine) { e.schemas = s }
}

// WithStrict rejects commands the schemas do not know. Without it unknown
// commands are accepted with a warning.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithOutput routes engine output, the text a real engine would print.
func WithOutput(out func(level, msg string)) Option {
	return func(e *Engine) { e.out = out }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		out:    func(string, string) {},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.modelDefined = false
	e.ndm, e.ndf = 0, 0
	e.defined = make(map[command.Category]map[int]*Entity)
	e.hidden = make(map[command.Category]int)
	e.graph = NewGraph()
	e.resetAnalysis()
	e.time = 0
}

func (e *Engine) resetAnalysis() {
	e.analysis = ""
	e.increment = 1
}

func reject(format string, args ...interface{}) error {
	return command.NewEngineInvocationError("WARNING "+fmt.Sprintf(format, args...), nil)
}

// Invoke runs one command against the domain. Rejections are returned as
// engine invocation errors carrying an engine-style diagnostic.
func (e *Engine) Invoke(ctx context.Context, cmd string, tokens []command.Token) (command.Status, error) {
	if err := ctx.Err(); err != nil {
		return command.Status{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.commands++
	status, err := e.invoke(cmd, tokens)
	if err != nil {
		e.logger.Debug().Str("command", cmd).Err(err).Msg("command rejected")
	}
	return status, err
}

func (e *Engine) invoke(cmd string, tokens []command.Token) (command.Status, error) {
	switch cmd {
	case "model":
		return e.model(tokens)
	case "wipe":
		e.reset()
		return command.Status{}, nil
	}

	if !e.modelDefined {
		return command.Status{}, reject("%s: no model defined, use the model command first", cmd)
	}

	switch cmd {
	case "wipeAnalysis":
		e.resetAnalysis()
		return command.Status{}, nil
	case "getTime":
		return command.Status{Values: []float64{e.time}}, nil
	case "setTime":
		t, ok := floatAt(tokens, 0)
		if !ok {
			return command.Status{}, reject("setTime pseudoTime? - need a time value")
		}
		e.time = t
		return command.Status{}, nil
	case "analyze":
		return e.analyze(tokens)
	}

	if err := e.define(cmd, tokens); err != nil {
		return command.Status{}, err
	}

	switch cmd {
	case "analysis":
		e.analysis, _ = stringAt(tokens, 0)
	case "integrator":
		if op, _ := stringAt(tokens, 0); op == "LoadControl" {
			if inc, ok := floatAt(tokens, 1); ok {
				e.increment = inc
			}
		}
	case "loadConst":
		if t, ok := flagValue(tokens, "-time"); ok {
			e.time = t
		}
	}
	return command.Status{}, nil
}

func (e *Engine) model(tokens []command.Token) (command.Status, error) {
	if op, _ := stringAt(tokens, 0); op != "basic" && op != "BasicBuilder" {
		return command.Status{}, reject("model: unknown builder %s", command.FormatTokens(tokens[:min(1, len(tokens))]))
	}
	ndm, ok := flagValue(tokens, "-ndm")
	if !ok || ndm < 1 || ndm > 3 {
		return command.Status{}, reject("model: -ndm must be 1, 2 or 3")
	}
	ndf, ok := flagValue(tokens, "-ndf")
	if !ok {
		// the engine default depends on ndm
		ndf = map[float64]float64{1: 1, 2: 3, 3: 6}[ndm]
	}
	if ndf < 1 || ndf > 6 {
		return command.Status{}, reject("model: -ndf must be between 1 and 6")
	}
	e.modelDefined = true
	e.ndm, e.ndf = int(ndm), int(ndf)
	return command.Status{}, nil
}

func (e *Engine) analyze(tokens []command.Token) (command.Status, error) {
	if e.analysis == "" {
		return command.Status{}, reject("analyze: no analysis defined, use the analysis command first")
	}
	steps, ok := intAt(tokens, 0)
	if !ok || steps < 1 {
		return command.Status{}, reject("analyze: number of steps must be a positive integer")
	}

	dt := e.increment
	if strings.HasPrefix(e.analysis, "Transient") || e.analysis == "VariableTransient" {
		var ok bool
		dt, ok = floatAt(tokens, 1)
		if !ok || dt <= 0 {
			return command.Status{}, reject("analyze: transient analysis needs a positive time step")
		}
	}

	e.time += float64(steps) * dt
	e.out("info", fmt.Sprintf("analyze: %d steps of %g, time %g", steps, dt, e.time))
	return command.Status{}, nil
}

// define checks a domain or control command against its schema and, for
// tagged categories, adds the entity to the domain.
func (e *Engine) define(cmd string, tokens []command.Token) error {
	inv := command.Describe(cmd, tokens)

	var schema *command.Schema
	if e.schemas != nil {
		var ok bool
		schema, ok = e.schemas.Lookup(cmd, inv.OpType)
		if !ok {
			if e.strict {
				return reject("%s: unknown command or type %q", cmd, inv.OpType)
			}
			e.out("warn", fmt.Sprintf("%s %s: no schema, arguments unchecked", cmd, inv.OpType))
		}
	}

	var refs []Key
	if schema != nil {
		decoded, err := schema.Decode(tokens)
		if err != nil {
			return reject("%s %s: invalid arguments: %s", cmd, inv.OpType, diagnosticOf(err))
		}
		refs, err = e.checkRefs(schema, decoded)
		if err != nil {
			return err
		}
		if err := e.checkShape(cmd, decoded); err != nil {
			return err
		}
	}

	cat := inv.Category
	if !cat.Tagged() {
		return nil
	}

	tag := inv.Tag
	if !cat.EmitsTag() {
		e.hidden[cat]++
		tag = e.hidden[cat]
	} else if tag <= 0 {
		return reject("%s %s: invalid tag %d", cmd, inv.OpType, tag)
	}

	tags := e.defined[cat]
	if tags == nil {
		tags = make(map[int]*Entity)
		e.defined[cat] = tags
	}
	if _, dup := tags[tag]; dup {
		return reject("%s %s: could not add %s with tag %d to the domain, tag already in use", cmd, inv.OpType, cat, tag)
	}

	k := Key{Category: cat, Tag: tag}
	tags[tag] = &Entity{Key: k, OpType: inv.OpType, Line: inv.Line()}
	label := cmd
	if inv.OpType != "" {
		label += " " + inv.OpType
	}
	e.graph.Add(k, label, refs...)
	return nil
}

func (e *Engine) checkRefs(schema *command.Schema, d command.Decoded) ([]Key, error) {
	var keys []Key
	for _, f := range schema.Fields() {
		if f.Type != command.TypeRef {
			continue
		}
		for _, t := range d.Args[f.Name] {
			tag64, _ := t.AsInt()
			tag := int(tag64)
			found := false
			for _, c := range f.Categories {
				if _, ok := e.defined[c][tag]; ok {
					keys = append(keys, Key{Category: c, Tag: tag})
					found = true
					break
				}
			}
			if !found {
				names := make([]string, len(f.Categories))
				for i, c := range f.Categories {
					names[i] = c.String()
				}
				return nil, reject("%s %s: %s with tag %d not found (field %s)",
					schema.Command(), schema.OpType(), strings.Join(names, " or "), tag, f.Name)
			}
		}
	}
	return keys, nil
}

// checkShape applies the dimension rules of the basic model builder.
func (e *Engine) checkShape(cmd string, d command.Decoded) error {
	if cmd != "node" {
		return nil
	}
	if n := len(d.Args["coords"]); n != e.ndm {
		return reject("node %d: %d coordinates given, model has ndm = %d", d.Tag, n, e.ndm)
	}
	if mass, ok := d.Args["mass"]; ok && len(mass) != e.ndf {
		return reject("node %d: %d mass terms given, model has ndf = %d", d.Tag, len(mass), e.ndf)
	}
	return nil
}

// Summary describes the domain.
type Summary struct {
	Dimensions int                      `json:"ndm"`
	DOFPerNode int                      `json:"ndf"`
	Counts     map[command.Category]int `json:"counts"`
	Time       float64                  `json:"time"`
	Analysis   string                   `json:"analysis,omitempty"`
	Commands   int                      `json:"commands"`
}

// Summary returns a snapshot of the domain.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[command.Category]int)
	for c, tags := range e.defined {
		if len(tags) > 0 {
			counts[c] = len(tags)
		}
	}
	return Summary{
		Dimensions: e.ndm,
		DOFPerNode: e.ndf,
		Counts:     counts,
		Time:       e.time,
		Analysis:   e.analysis,
		Commands:   e.commands,
	}
}

// Defined returns the sorted tags defined in a category.
func (e *Engine) Defined(c command.Category) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	tags := make([]int, 0, len(e.defined[c]))
	for t := range e.defined[c] {
		tags = append(tags, t)
	}
	sort.Ints(tags)
	return tags
}

// Entity returns a defined entity.
func (e *Engine) Entity(c command.Category, tag int) (Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.defined[c][tag]
	if !ok {
		return Entity{}, false
	}
	return *ent, true
}

// Time returns the analysis pseudo-time.
func (e *Engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// Graph returns the reference graph. The caller must not use it
// concurrently with Invoke.
func (e *Engine) Graph() *Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

func diagnosticOf(err error) string {
	var cerr *command.Error
	if errors.As(err, &cerr) {
		if cerr.Field != "" {
			return cerr.Field + ": " + cerr.Message
		}
		return cerr.Message
	}
	return err.Error()
}
