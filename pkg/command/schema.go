package command

import (
	"fmt"
	"strings"
)

// FieldKind says where and how a field appears in the encoded tokens.
type FieldKind uint8

const (
	// FieldRequired is a positional scalar that must be present.
	FieldRequired FieldKind = iota + 1
	// FieldPacket is a positional list expanded inline; it must be present
	// but may be empty.
	FieldPacket
	// FieldOptional is a trailing positional scalar. Once one trailing
	// optional is absent, none after it may be given.
	FieldOptional
	// FieldOptionalPacket is a trailing positional list under the same rule.
	FieldOptionalPacket
	// FieldFlag is an independent block: marker then scalar.
	FieldFlag
	// FieldFlagPacket is an independent block: marker then expanded list.
	FieldFlagPacket
	// FieldSwitch is a marker emitted alone when on.
	FieldSwitch
)

func (k FieldKind) String() string {
	switch k {
	case FieldRequired:
		return "required"
	case FieldPacket:
		return "packet"
	case FieldOptional:
		return "optional"
	case FieldOptionalPacket:
		return "optional_packet"
	case FieldFlag:
		return "flag"
	case FieldFlagPacket:
		return "flag_packet"
	case FieldSwitch:
		return "switch"
	}
	return "invalid"
}

func (k FieldKind) list() bool {
	return k == FieldPacket || k == FieldOptionalPacket || k == FieldFlagPacket
}

func (k FieldKind) trailing() bool {
	return k == FieldOptional || k == FieldOptionalPacket
}

func (k FieldKind) flagged() bool {
	return k == FieldFlag || k == FieldFlagPacket || k == FieldSwitch
}

// rank orders the three schema sections: positional, trailing, flagged.
func (k FieldKind) rank() int {
	switch {
	case k.trailing():
		return 1
	case k.flagged():
		return 2
	}
	return 0
}

// ValueType is the canonical type of a field's value (or of each element of
// a packet).
type ValueType uint8

const (
	TypeInt ValueType = iota + 1
	TypeFloat
	TypeString
	// TypeEnum is a string restricted to literal choices.
	TypeEnum
	// TypeRef is a reference to another object, encoded as its tag.
	TypeRef
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeRef:
		return "ref"
	}
	return "invalid"
}

// Field describes one field of an entity.
type Field struct {
	Name       string
	Kind       FieldKind
	Type       ValueType
	Marker     string
	Choices    []string
	Categories []Category
	// Len fixes the length of a packet; 0 accepts any length.
	Len int
}

// Required declares a positional scalar.
func Required(name string, t ValueType) Field {
	return Field{Name: name, Kind: FieldRequired, Type: t}
}

// Packet declares a positional list.
func Packet(name string, t ValueType) Field {
	return Field{Name: name, Kind: FieldPacket, Type: t}
}

// Optional declares a trailing positional scalar.
func Optional(name string, t ValueType) Field {
	return Field{Name: name, Kind: FieldOptional, Type: t}
}

// OptionalPacket declares a trailing positional list.
func OptionalPacket(name string, t ValueType) Field {
	return Field{Name: name, Kind: FieldOptionalPacket, Type: t}
}

// Flag declares an independent marker + scalar block.
func Flag(name, marker string, t ValueType) Field {
	return Field{Name: name, Kind: FieldFlag, Type: t, Marker: marker}
}

// FlagPacket declares an independent marker + list block.
func FlagPacket(name, marker string, t ValueType) Field {
	return Field{Name: name, Kind: FieldFlagPacket, Type: t, Marker: marker}
}

// Switch declares a marker with no value.
func Switch(name, marker string) Field {
	return Field{Name: name, Kind: FieldSwitch, Marker: marker}
}

// Of restricts a reference field to the given categories.
func (f Field) Of(cats ...Category) Field {
	f.Categories = append([]Category(nil), cats...)
	return f
}

// OneOf sets the literal choices of an enum field.
func (f Field) OneOf(choices ...string) Field {
	f.Choices = append([]string(nil), choices...)
	return f
}

// WithLen fixes the length of a packet field.
func (f Field) WithLen(n int) Field {
	f.Len = n
	return f
}

func (f Field) accepts(c Category) bool {
	for _, a := range f.Categories {
		if a == c {
			return true
		}
	}
	return false
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field name is required")
	}
	if f.Kind < FieldRequired || f.Kind > FieldSwitch {
		return fmt.Errorf("field %s: invalid kind", f.Name)
	}
	if f.Kind.flagged() {
		if !strings.HasPrefix(f.Marker, "-") || len(f.Marker) < 2 {
			return fmt.Errorf("field %s: marker must start with '-'", f.Name)
		}
	} else if f.Marker != "" {
		return fmt.Errorf("field %s: positional fields take no marker", f.Name)
	}
	if f.Kind == FieldSwitch {
		return nil
	}
	switch f.Type {
	case TypeInt, TypeFloat, TypeString:
	case TypeEnum:
		if len(f.Choices) == 0 {
			return fmt.Errorf("field %s: enum needs choices", f.Name)
		}
	case TypeRef:
		if len(f.Categories) == 0 {
			return fmt.Errorf("field %s: reference needs at least one category", f.Name)
		}
		for _, c := range f.Categories {
			if !c.Tagged() {
				return fmt.Errorf("field %s: category %s cannot be referenced", f.Name, c)
			}
		}
	default:
		return fmt.Errorf("field %s: invalid type", f.Name)
	}
	if f.Len != 0 && !f.Kind.list() {
		return fmt.Errorf("field %s: length applies to packets only", f.Name)
	}
	if f.Len < 0 {
		return fmt.Errorf("field %s: negative length", f.Name)
	}
	return nil
}

// Schema is the declarative description of one entity: its category, the
// engine procedure, the op_type literal, and its ordered fields.
type Schema struct {
	category Category
	command  string
	opType   string
	fields   []Field
	index    map[string]int
}

// NewSchema checks and builds a schema. For tagged categories an empty
// command defaults to the category's procedure. Fields must be ordered
// positional, then trailing optional, then flagged.
func NewSchema(category Category, command, opType string, fields ...Field) (*Schema, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(category))
	}
	if command == "" {
		command = category.Command()
	}
	if command == "" {
		return nil, fmt.Errorf("control schema needs a command")
	}
	if category.Tagged() && command != category.Command() {
		return nil, fmt.Errorf("category %s is created by %s, not %s", category, category.Command(), command)
	}
	if strings.ContainsAny(command+opType, " \t\n\"") {
		return nil, fmt.Errorf("command and op type must be bare words")
	}

	s := &Schema{
		category: category,
		command:  command,
		opType:   opType,
		fields:   make([]Field, len(fields)),
		index:    make(map[string]int, len(fields)),
	}
	markers := make(map[string]string)
	rank := 0
	for i, f := range fields {
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", command, opType, err)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%s %s: duplicate field %s", command, opType, f.Name)
		}
		if f.Marker != "" {
			if other, dup := markers[f.Marker]; dup {
				return nil, fmt.Errorf("%s %s: marker %s used by %s and %s", command, opType, f.Marker, other, f.Name)
			}
			markers[f.Marker] = f.Name
		}
		if f.Kind.rank() < rank {
			return nil, fmt.Errorf("%s %s: field %s (%s) declared after a later section", command, opType, f.Name, f.Kind)
		}
		rank = f.Kind.rank()
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error. Meant for package-level catalog declarations.
func MustSchema(category Category, command, opType string, fields ...Field) *Schema {
	s, err := NewSchema(category, command, opType, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Category returns the entity category.
func (s *Schema) Category() Category { return s.category }

// Command returns the engine procedure.
func (s *Schema) Command() string { return s.command }

// OpType returns the op_type literal, or "" for commands without one.
func (s *Schema) OpType() string { return s.opType }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Key identifies the schema within a catalog.
func (s *Schema) Key() string {
	if s.opType == "" {
		return s.command
	}
	return s.command + "." + s.opType
}

// Usage renders a one-line synopsis, e.g. "uniaxialMaterial Elastic <tag> E eta [Eneg]".
func (s *Schema) Usage() string {
	var b strings.Builder
	b.WriteString(s.command)
	if s.opType != "" {
		b.WriteString(" " + s.opType)
	}
	if s.category.EmitsTag() {
		b.WriteString(" <tag>")
	}
	for _, f := range s.fields {
		b.WriteByte(' ')
		name := f.Name
		if f.Kind.list() {
			name += "..."
		}
		switch f.Kind {
		case FieldRequired, FieldPacket:
			b.WriteString(name)
		case FieldOptional, FieldOptionalPacket:
			b.WriteString("[" + name + "]")
		case FieldFlag, FieldFlagPacket:
			b.WriteString("[" + f.Marker + " " + name + "]")
		case FieldSwitch:
			b.WriteString("[" + f.Marker + "]")
		}
	}
	return b.String()
}
