package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Precision selects how floating values are rendered for the engine.
type Precision string

const (
	// PrecisionDouble passes float64 values through unchanged.
	PrecisionDouble Precision = "double"
	// PrecisionSingle rounds floats through float32 before emission.
	PrecisionSingle Precision = "single"
)

func (p Precision) round(t Token) Token {
	if p != PrecisionSingle || t.Kind() != TokenFloat {
		return t
	}
	f, _ := t.AsFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return t
	}
	return Float(float64(float32(f)))
}

// ModelConfig is the model-wide configuration of a session.
type ModelConfig struct {
	// Dimensions is the number of spatial dimensions (ndm).
	Dimensions int `json:"dimensions" yaml:"dimensions" validate:"required,min=1,max=3"`

	// DOFPerNode is the number of degrees of freedom per node (ndf).
	DOFPerNode int `json:"dof_per_node" yaml:"dof_per_node" validate:"required,min=1,max=6"`

	// Precision is the numeric precision mode. Empty means double.
	Precision Precision `json:"precision,omitempty" yaml:"precision,omitempty" validate:"omitempty,oneof=double single"`
}

// Validate checks the configuration.
func (c ModelConfig) Validate() error {
	if c.Dimensions < 1 || c.Dimensions > 3 {
		return NewParameterError("ndm", "dimensions must be 1, 2 or 3, got %d", c.Dimensions).WithCommand("model", "basic")
	}
	if c.DOFPerNode < 1 || c.DOFPerNode > 6 {
		return NewParameterError("ndf", "dof per node must be between 1 and 6, got %d", c.DOFPerNode).WithCommand("model", "basic")
	}
	switch c.Precision {
	case "", PrecisionDouble, PrecisionSingle:
	default:
		return NewParameterError("precision", "unknown precision %q", c.Precision)
	}
	return nil
}

var modelSchema = MustSchema(CategoryControl, "model", "basic",
	Flag("ndm", "-ndm", TypeInt),
	Flag("ndf", "-ndf", TypeInt),
)

var wipeSchema = MustSchema(CategoryControl, "wipe", "")

// Session is one analysis context: the tag registry, the model
// configuration, and the active backend. Every object is constructed
// against exactly one session. A Session is not safe for concurrent use;
// callers that share one across goroutines must serialize construction.
type Session struct {
	id        string
	cfg       ModelConfig
	tags      *Registry
	backend   Backend
	logger    zerolog.Logger
	observers []Observer
	emitting  bool
	seq       int
	// epoch counts wipes; refs from an earlier epoch are stale.
	epoch int
	// declared is set once the engine has been told the model and cleared
	// by wipe.
	declared bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver adds an observer notified of every emission.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession creates a session without emitting anything. Most callers want
// Open, which also declares the model to the engine.
func NewSession(cfg ModelConfig, backend Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, NewBackendError("session requires a backend", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Precision == "" {
		cfg.Precision = PrecisionDouble
	}

	s := &Session{
		id:      uuid.New().String(),
		cfg:     cfg,
		tags:    NewRegistry(),
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	return s, nil
}

// Open creates a session and emits the model builder command
// (model basic -ndm N -ndf M).
func Open(ctx context.Context, cfg ModelConfig, backend Backend, opts ...Option) (*Session, error) {
	s, err := NewSession(cfg, backend, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.declareModel(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) declareModel(ctx context.Context) error {
	if _, err := s.run(ctx, modelSchema, Values{}.Int("ndm", s.cfg.Dimensions).Int("ndf", s.cfg.DOFPerNode)); err != nil {
		return err
	}
	s.declared = true
	return nil
}

// ModelDeclared reports whether the model declaration has been emitted since
// the session was opened or last wiped.
func (s *Session) ModelDeclared() bool { return s.declared }

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the model configuration.
func (s *Session) Config() ModelConfig { return s.cfg }

// Backend returns the active backend.
func (s *Session) Backend() Backend { return s.backend }

// Logger returns the session logger.
func (s *Session) Logger() zerolog.Logger { return s.logger }

// Seq returns the number of invocations emitted so far.
func (s *Session) Seq() int { return s.seq }

// LastTag returns the last tag allocated in c, or 0.
func (s *Session) LastTag(c Category) int { return s.tags.Last(c) }

// Tags returns the last allocated tag per category.
func (s *Session) Tags() map[Category]int { return s.tags.Snapshot() }

// SetBackend switches the active backend. Already emitted commands are not
// affected. It fails while an emission is in progress, i.e. when called
// from inside a backend or observer.
func (s *Session) SetBackend(b Backend) error {
	if b == nil {
		return NewBackendError("backend is nil", nil)
	}
	if s.emitting {
		return NewBackendError("cannot switch backend during an emission", nil)
	}
	s.logger.Debug().
		Str("from", BackendName(s.backend)).
		Str("to", BackendName(b)).
		Msg("Switching backend")
	s.backend = b
	return nil
}

// Wipe emits wipe, resets the tag registry and declares the model again so
// the session can keep building. Objects constructed before the wipe can no
// longer be referenced.
func (s *Session) Wipe(ctx context.Context) error {
	if _, err := s.run(ctx, wipeSchema, Values{}); err != nil {
		return err
	}
	s.wiped()
	return s.declareModel(ctx)
}

func (s *Session) wiped() {
	s.tags.Reset()
	s.epoch++
	s.declared = false
}

// Run validates and emits an untagged command described by schema.
func (s *Session) Run(ctx context.Context, schema *Schema, vals Values) (Status, error) {
	if schema.Category().Tagged() {
		return Status{}, NewParameterError("", "%s creates tagged objects; use New", schema.Command()).
			WithCommand(schema.Command(), schema.OpType())
	}
	return s.run(ctx, schema, vals)
}

func (s *Session) run(ctx context.Context, schema *Schema, vals Values) (Status, error) {
	b, err := schema.bind(s, vals)
	if err != nil {
		s.reject(ctx, schema, err)
		return Status{}, err
	}
	inv := Invocation{
		Command:  schema.Command(),
		Category: CategoryControl,
		OpType:   schema.OpType(),
		Tokens:   b.encode(0, s.cfg.Precision),
	}
	return s.emit(ctx, inv)
}

// Invoke emits a pre-encoded invocation, as read back from a transcript.
// Tags found in the invocation advance the registry so later constructions
// do not collide with them. A wipe resets the registry and leaves the model
// undeclared until the transcript's own model line arrives.
func (s *Session) Invoke(ctx context.Context, inv Invocation) (Status, error) {
	if inv.Command == "" {
		return Status{}, NewParameterError("", "invocation has no command")
	}
	d := Describe(inv.Command, inv.Tokens)
	inv.Category, inv.OpType, inv.Tag = d.Category, d.OpType, d.Tag
	var err error
	if inv.Category.Tagged() {
		if inv.Category.EmitsTag() {
			s.tags.Observe(inv.Category, inv.Tag)
		} else if inv.Tag, err = s.tags.Next(inv.Category); err != nil {
			return Status{}, err
		}
	}
	status, err := s.emit(ctx, inv)
	if err != nil {
		return status, err
	}
	switch inv.Command {
	case wipeSchema.Command():
		s.wiped()
	case modelSchema.Command():
		s.declared = true
	}
	return status, nil
}

// emit hands inv to the backend. It is the only place the backend is called.
func (s *Session) emit(ctx context.Context, inv Invocation) (Status, error) {
	if s.emitting {
		return Status{}, NewBackendError("nested emission", nil).WithCommand(inv.Command, inv.OpType)
	}
	s.emitting = true
	defer func() { s.emitting = false }()

	s.seq++
	inv.Seq = s.seq
	inv.Session = s.id

	// The backend gets its own copy of the tokens; inv keeps the encoded ones.
	sent := inv
	sent.Tokens = cloneTokens(inv.Tokens)

	start := time.Now()
	status, err := s.backend.Emit(ctx, sent)
	elapsed := time.Since(start)

	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			err = NewBackendError("emit failed", err).WithCommand(inv.Command, inv.OpType)
		} else if e.Command == "" {
			e.WithCommand(inv.Command, inv.OpType)
		}
		s.logger.Error().Err(err).
			Int("seq", inv.Seq).
			Str("line", inv.Line()).
			Msg("Emission failed")
	} else {
		s.logger.Debug().
			Int("seq", inv.Seq).
			Str("line", inv.Line()).
			Int("code", status.Code).
			Msg("Emitted")
	}

	s.notify(ctx, Event{
		Session:    s.id,
		Backend:    BackendName(s.backend),
		Invocation: withTokens(inv, cloneTokens(inv.Tokens)),
		Status:     status,
		Err:        err,
		Duration:   elapsed,
	})
	return status, err
}

func cloneTokens(toks []Token) []Token {
	if toks == nil {
		return nil
	}
	return append([]Token(nil), toks...)
}

func withTokens(inv Invocation, toks []Token) Invocation {
	inv.Tokens = toks
	return inv
}

// reject reports a construction that failed validation and emitted nothing.
func (s *Session) reject(ctx context.Context, schema *Schema, err error) {
	s.logger.Debug().Err(err).Str("command", schema.Command()).Str("op_type", schema.OpType()).Msg("Construction rejected")
	s.notify(ctx, Event{
		Session: s.id,
		Backend: BackendName(s.backend),
		Invocation: Invocation{
			Session:  s.id,
			Command:  schema.Command(),
			Category: schema.Category(),
			OpType:   schema.OpType(),
		},
		Err: err,
	})
}

func (s *Session) notify(ctx context.Context, ev Event) {
	for _, o := range s.observers {
		o.Observe(ctx, ev)
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (ndm=%d ndf=%d)", s.id, s.cfg.Dimensions, s.cfg.DOFPerNode)
}
