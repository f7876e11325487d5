package command

import (
	"math"
	"sort"
)

type boundField struct {
	field Field
	toks  []Token
	refs  []Ref
	on    bool
}

// binding is a validated set of values, ready to be encoded once a tag is
// known.
type binding struct {
	schema *Schema
	fields []boundField
}

// bind validates vals against the schema without touching any session
// state. sess may be nil, in which case references are only checked for
// presence and category.
func (s *Schema) bind(sess *Session, vals Values) (*binding, error) {
	if err := s.checkUnknown(vals); err != nil {
		return nil, err
	}

	b := &binding{schema: s, fields: make([]boundField, 0, len(s.fields))}
	missing := ""
	for _, f := range s.fields {
		v, present := vals[f.Name]
		if f.Kind.trailing() {
			if !present {
				if missing == "" {
					missing = f.Name
				}
				continue
			}
			if missing != "" {
				return nil, s.wrap(NewParameterOrderError(f.Name, missing))
			}
		}
		if !present {
			if f.Kind == FieldRequired || f.Kind == FieldPacket {
				return nil, s.wrap(NewParameterError(f.Name, "required field is missing"))
			}
			continue
		}
		bf, err := s.bindField(sess, f, v)
		if err != nil {
			return nil, s.wrap(err)
		}
		b.fields = append(b.fields, bf)
	}
	return b, nil
}

func (s *Schema) checkUnknown(vals Values) error {
	var unknown []string
	for name := range vals {
		if _, ok := s.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return s.wrap(NewParameterError(unknown[0], "unknown field").WithDetail("unknown", unknown))
}

func (s *Schema) wrap(err *Error) *Error {
	return err.WithCommand(s.command, s.opType)
}

func (s *Schema) bindField(sess *Session, f Field, v Value) (boundField, *Error) {
	bf := boundField{field: f}

	if f.Kind == FieldSwitch {
		if v.shape != shapeSwitch {
			return bf, NewParameterError(f.Name, "switch takes no value")
		}
		bf.on = v.on
		return bf, nil
	}
	if v.shape == shapeSwitch {
		return bf, NewParameterError(f.Name, "field is not a switch")
	}
	if f.Kind.list() != (v.shape == shapeList) {
		if f.Kind.list() {
			return bf, NewParameterError(f.Name, "expected a list of %s", f.Type)
		}
		return bf, NewParameterError(f.Name, "expected a single %s", f.Type)
	}
	if f.Len > 0 && v.count() != f.Len {
		return bf, NewParameterError(f.Name, "expected %d values, got %d", f.Len, v.count())
	}

	if f.Type == TypeRef {
		if !v.isRef {
			return bf, NewReferenceError(f.Name, "expected a reference to %s", f.Categories[0])
		}
		for _, r := range v.refs {
			if err := checkRef(sess, f, r); err != nil {
				return bf, err
			}
		}
		bf.refs = v.refs
		return bf, nil
	}
	if v.isRef {
		return bf, NewParameterError(f.Name, "expected %s, got a reference", f.Type)
	}

	bf.toks = make([]Token, len(v.toks))
	for i, t := range v.toks {
		c, err := coerce(f, t)
		if err != nil {
			return bf, err
		}
		bf.toks[i] = c
	}
	return bf, nil
}

func checkRef(sess *Session, f Field, r Ref) *Error {
	if r.IsZero() {
		return NewReferenceError(f.Name, "reference to an object that was never constructed")
	}
	if !f.accepts(r.category) {
		return NewReferenceError(f.Name, "%s is not a valid %s reference", r, f.Categories[0]).
			WithDetail("category", r.category.String())
	}
	if sess == nil {
		return nil
	}
	if r.session != sess.id {
		return NewContextMismatchError(f.Name, r.session, sess.id)
	}
	if r.epoch != sess.epoch || r.tag > sess.tags.Last(r.category) {
		return NewReferenceError(f.Name, "%s does not exist in this session", r)
	}
	return nil
}

// coerce converts a literal to the field's canonical token type.
func coerce(f Field, t Token) (Token, *Error) {
	switch f.Type {
	case TypeInt:
		if t.Kind() == TokenInt {
			return t, nil
		}
		if x, ok := t.AsFloat(); ok && t.Kind() == TokenFloat && x == math.Trunc(x) && math.Abs(x) <= MaxTag {
			return Int64(int64(x)), nil
		}
	case TypeFloat:
		if x, ok := t.AsFloat(); ok {
			return Float(x), nil
		}
	case TypeString:
		if t.Kind() == TokenString {
			return t, nil
		}
	case TypeEnum:
		if s, ok := t.AsString(); ok {
			for _, c := range f.Choices {
				if s == c {
					return t, nil
				}
			}
			return t, NewParameterError(f.Name, "%q is not one of %v", s, f.Choices)
		}
	}
	return t, NewParameterError(f.Name, "expected %s, got %s", f.Type, t.Kind())
}

// encode renders the binding. The layout is op_type, tag, positional fields,
// trailing optionals up to the first absent one, then flag blocks.
func (b *binding) encode(tag int, prec Precision) []Token {
	s := b.schema
	toks := make([]Token, 0, 2+len(b.fields)*2)
	if s.opType != "" {
		toks = append(toks, Str(s.opType))
	}
	if s.category.EmitsTag() {
		toks = append(toks, Int(tag))
	}
	for _, bf := range b.fields {
		if bf.field.Kind.flagged() {
			if bf.field.Kind == FieldSwitch && !bf.on {
				continue
			}
			toks = append(toks, Str(bf.field.Marker))
		}
		for _, r := range bf.refs {
			toks = append(toks, Int(r.tag))
		}
		for _, t := range bf.toks {
			toks = append(toks, prec.round(t))
		}
	}
	return toks
}

// Encode validates vals against the schema and renders the tokens for the
// given tag, without a session. References are checked for presence and
// category only.
func (s *Schema) Encode(tag int, vals Values) ([]Token, error) {
	b, err := s.bind(nil, vals)
	if err != nil {
		return nil, err
	}
	return b.encode(tag, PrecisionDouble), nil
}
