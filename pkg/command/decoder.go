package command

import "strings"

// Decoded is an invocation's token list split back into named fields.
// References are left as their integer tags.
type Decoded struct {
	OpType string
	Tag    int
	// Args holds the tokens of every field present, keyed by field name.
	// A switch that is on maps to an empty, non-nil slice.
	Args map[string][]Token
}

// Has reports whether the field was present.
func (d Decoded) Has(name string) bool {
	_, ok := d.Args[name]
	return ok
}

// Decode parses the tokens that follow the command name, i.e. the output of
// Encode, back into fields. It is the inverse of Encode for well-formed
// input and reports a ParameterError otherwise.
func (s *Schema) Decode(tokens []Token) (Decoded, error) {
	d := Decoded{Args: make(map[string][]Token)}
	rest := tokens

	if s.opType != "" {
		if len(rest) == 0 {
			return d, s.wrap(NewParameterError("", "missing op type %q", s.opType))
		}
		op, _ := rest[0].AsString()
		if op != s.opType {
			return d, s.wrap(NewParameterError("", "op type is %s, want %s", rest[0], s.opType))
		}
		d.OpType = op
		rest = rest[1:]
	}
	if s.category.EmitsTag() {
		if len(rest) == 0 {
			return d, s.wrap(NewParameterError("", "missing tag"))
		}
		tag, ok := rest[0].AsInt()
		if !ok {
			return d, s.wrap(NewParameterError("", "tag %s is not an integer", rest[0]))
		}
		d.Tag = int(tag)
		rest = rest[1:]
	}

	markers := make(map[string]Field)
	for _, f := range s.fields {
		if f.Kind.flagged() {
			markers[f.Marker] = f
		}
	}
	isMarker := func(t Token) bool {
		str, ok := t.AsString()
		if !ok {
			return false
		}
		_, known := markers[str]
		return known
	}

	// positional section ends at the first marker
	end := len(rest)
	for i, t := range rest {
		if isMarker(t) {
			end = i
			break
		}
	}
	pos, flagged := rest[:end], rest[end:]

	for i, f := range s.fields {
		if f.Kind.flagged() {
			continue
		}
		var take int
		switch {
		case !f.Kind.list():
			take = 1
		case f.Len > 0:
			take = f.Len
		default:
			take = len(pos) - s.reserved(i+1)
			if take < 0 {
				take = 0
			}
		}
		if len(pos) < take || (take == 1 && len(pos) == 0) {
			if f.Kind.trailing() {
				break
			}
			return d, s.wrap(NewParameterError(f.Name, "required field is missing"))
		}
		if f.Kind.trailing() && len(pos) == 0 {
			break
		}
		vals := pos[:take]
		if err := checkTokens(f, vals); err != nil {
			return d, s.wrap(err)
		}
		d.Args[f.Name] = append([]Token{}, vals...)
		pos = pos[take:]
	}
	if len(pos) > 0 {
		return d, s.wrap(NewParameterError("", "%d unexpected positional tokens: %s", len(pos), FormatTokens(pos)))
	}

	for len(flagged) > 0 {
		marker, _ := flagged[0].AsString()
		f, ok := markers[marker]
		if !ok {
			return d, s.wrap(NewParameterError("", "unknown flag %s", flagged[0]))
		}
		if d.Has(f.Name) {
			return d, s.wrap(NewParameterError(f.Name, "flag %s given twice", marker))
		}
		flagged = flagged[1:]

		n := 0
		switch f.Kind {
		case FieldSwitch:
		case FieldFlag:
			n = 1
		case FieldFlagPacket:
			for n < len(flagged) && !isMarker(flagged[n]) {
				n++
			}
		}
		if len(flagged) < n || (f.Kind == FieldFlag && (n == 0 || isMarker(flagged[0]))) {
			return d, s.wrap(NewParameterError(f.Name, "flag %s needs a value", marker))
		}
		vals := flagged[:n]
		if err := checkTokens(f, vals); err != nil {
			return d, s.wrap(err)
		}
		d.Args[f.Name] = append([]Token{}, vals...)
		flagged = flagged[n:]
	}
	return d, nil
}

// reserved counts the positional tokens the required fields from index i on
// need at minimum.
func (s *Schema) reserved(i int) int {
	n := 0
	for _, f := range s.fields[i:] {
		switch {
		case f.Kind == FieldRequired:
			n++
		case f.Kind == FieldPacket:
			n += f.Len
		}
	}
	return n
}

// checkTokens verifies the token kinds against the field's value type.
func checkTokens(f Field, toks []Token) *Error {
	if f.Kind.list() && f.Len > 0 && len(toks) != f.Len {
		return NewParameterError(f.Name, "expected %d values, got %d", f.Len, len(toks))
	}
	for _, t := range toks {
		switch f.Type {
		case TypeInt, TypeRef:
			if _, ok := t.AsInt(); !ok {
				return NewParameterError(f.Name, "%s is not an integer", t)
			}
		case TypeFloat:
			if _, ok := t.AsFloat(); !ok {
				return NewParameterError(f.Name, "%s is not a number", t)
			}
		case TypeString:
			if _, ok := t.AsString(); !ok {
				return NewParameterError(f.Name, "%s is not a string", t)
			}
		case TypeEnum:
			str, _ := t.AsString()
			if !contains(f.Choices, str) {
				return NewParameterError(f.Name, "%s is not one of %s", t, strings.Join(f.Choices, ", "))
			}
		default:
			return NewParameterError(f.Name, "unsupported type %s", f.Type)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, c := range list {
		if c == s {
			return true
		}
	}
	return false
}

// Refs returns the tags a decoded invocation references, per field.
func (d Decoded) Refs(s *Schema) map[string][]int {
	out := make(map[string][]int)
	for _, f := range s.fields {
		if f.Type != TypeRef {
			continue
		}
		for _, t := range d.Args[f.Name] {
			tag, _ := t.AsInt()
			out[f.Name] = append(out[f.Name], int(tag))
		}
	}
	return out
}
