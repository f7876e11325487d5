package command

import "context"

// Definition is what an entity description supplies to the core: its schema
// and the caller's field values. Catalog entities implement it.
type Definition interface {
	Schema() *Schema
	Values() Values
}

// Object is a constructed, emitted command. It is immutable: every accessor
// returns a copy and there are no setters.
type Object struct {
	session  string
	epoch    int
	category Category
	command  string
	opType   string
	tag      int
	seq      int
	tokens   []Token
	status   Status
}

// New validates def against its schema, allocates a tag, encodes the tokens,
// and emits them through the session's backend.
//
// Validation runs before allocation, so a rejected definition consumes no
// tag. If the backend fails the tag stays consumed and is never reused; the
// error is returned with no Object.
func New(ctx context.Context, s *Session, def Definition) (*Object, error) {
	if s == nil {
		return nil, NewParameterError("", "nil session")
	}
	if def == nil {
		return nil, NewParameterError("", "nil definition")
	}
	schema := def.Schema()
	if schema == nil {
		return nil, NewParameterError("", "definition %T has no schema", def)
	}

	b, err := schema.bind(s, def.Values())
	if err != nil {
		s.reject(ctx, schema, err)
		return nil, err
	}

	tag := 0
	if schema.Category().Tagged() {
		tag, err = s.tags.Next(schema.Category())
		if err != nil {
			e := err.(*Error).WithCommand(schema.Command(), schema.OpType())
			s.reject(ctx, schema, e)
			return nil, e
		}
	}

	inv := Invocation{
		Command:  schema.Command(),
		Category: schema.Category(),
		OpType:   schema.OpType(),
		Tag:      tag,
		Tokens:   b.encode(tag, s.cfg.Precision),
	}
	status, err := s.emit(ctx, inv)
	if err != nil {
		return nil, err
	}

	return &Object{
		session:  s.id,
		epoch:    s.epoch,
		category: inv.Category,
		command:  inv.Command,
		opType:   inv.OpType,
		tag:      tag,
		seq:      s.seq,
		tokens:   cloneTokens(inv.Tokens),
		status:   status,
	}, nil
}

// Tag returns the object's tag, or 0 for control commands.
func (o *Object) Tag() int { return o.tag }

// Category returns the object's category.
func (o *Object) Category() Category { return o.category }

// Command returns the engine procedure.
func (o *Object) Command() string { return o.command }

// OpType returns the op_type literal.
func (o *Object) OpType() string { return o.opType }

// Seq returns the position of the object's invocation in its session.
func (o *Object) Seq() int { return o.seq }

// Tokens returns a copy of the encoded tokens.
func (o *Object) Tokens() []Token {
	out := make([]Token, len(o.tokens))
	copy(out, o.tokens)
	return out
}

// Line returns the transcript line the object was emitted as.
func (o *Object) Line() string {
	return Invocation{Command: o.command, Tokens: o.tokens}.Line()
}

// Status returns what the backend reported when the object was emitted.
func (o *Object) Status() Status {
	st := o.status
	st.Values = append([]float64(nil), o.status.Values...)
	return st
}

// Ref returns a handle other commands can reference this object by. A nil
// Object or a control command yields the zero Ref.
func (o *Object) Ref() Ref {
	if o == nil || !o.category.Tagged() {
		return Ref{}
	}
	return Ref{session: o.session, epoch: o.epoch, category: o.category, tag: o.tag}
}

func (o *Object) String() string {
	return o.Line()
}
