package command

// Opt is an optional value. The zero Opt is absent.
type Opt[T any] struct {
	v  T
	ok bool
}

// Some returns a present optional.
func Some[T any](v T) Opt[T] { return Opt[T]{v: v, ok: true} }

// None returns an absent optional.
func None[T any]() Opt[T] { return Opt[T]{} }

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) { return o.v, o.ok }

// IsSet reports whether the value is present.
func (o Opt[T]) IsSet() bool { return o.ok }

// Or returns the value, or def when absent.
func (o Opt[T]) Or(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

// Referent is anything that can be referenced by another command: an
// *Object or a Ref taken from one.
type Referent interface {
	Ref() Ref
}

type valueShape uint8

const (
	shapeScalar valueShape = iota + 1
	shapeList
	shapeSwitch
)

// Value is one field value as supplied by a caller, before validation.
type Value struct {
	shape valueShape
	toks  []Token
	refs  []Ref
	isRef bool
	on    bool
}

func (v Value) count() int {
	if v.isRef {
		return len(v.refs)
	}
	return len(v.toks)
}

// Values maps field names to caller-supplied values. The builder methods
// return the map so calls chain:
//
//	command.Values{}.Float("E", 2e8).Float("eta", 0)
type Values map[string]Value

func (v Values) set(name string, val Value) Values {
	v[name] = val
	return v
}

// Int sets an integer scalar.
func (v Values) Int(name string, i int) Values {
	return v.set(name, Value{shape: shapeScalar, toks: []Token{Int(i)}})
}

// Float sets a floating scalar.
func (v Values) Float(name string, f float64) Values {
	return v.set(name, Value{shape: shapeScalar, toks: []Token{Float(f)}})
}

// Str sets a string or enum scalar.
func (v Values) Str(name string, s string) Values {
	return v.set(name, Value{shape: shapeScalar, toks: []Token{Str(s)}})
}

// Ref sets a reference scalar. A nil referent is kept and rejected at
// construction as a reference error.
func (v Values) Ref(name string, r Referent) Values {
	return v.set(name, Value{shape: shapeScalar, isRef: true, refs: []Ref{refOf(r)}})
}

// Ints sets an integer packet. A nil slice is an empty packet.
func (v Values) Ints(name string, is []int) Values {
	toks := make([]Token, len(is))
	for i, x := range is {
		toks[i] = Int(x)
	}
	return v.set(name, Value{shape: shapeList, toks: toks})
}

// Floats sets a floating packet. A nil slice is an empty packet.
func (v Values) Floats(name string, fs []float64) Values {
	toks := make([]Token, len(fs))
	for i, x := range fs {
		toks[i] = Float(x)
	}
	return v.set(name, Value{shape: shapeList, toks: toks})
}

// Strs sets a string packet.
func (v Values) Strs(name string, ss []string) Values {
	toks := make([]Token, len(ss))
	for i, x := range ss {
		toks[i] = Str(x)
	}
	return v.set(name, Value{shape: shapeList, toks: toks})
}

// Refs sets a reference packet.
func Refs[R Referent](v Values, name string, rs []R) Values {
	refs := make([]Ref, len(rs))
	for i, r := range rs {
		refs[i] = refOf(r)
	}
	return v.set(name, Value{shape: shapeList, isRef: true, refs: refs})
}

// RefList sets a reference packet from mixed referents.
func (v Values) RefList(name string, rs ...Referent) Values {
	return Refs(v, name, rs)
}

// Switch turns a marker-only field on or off. Off is the same as absent.
func (v Values) Switch(name string, on bool) Values {
	if !on {
		delete(v, name)
		return v
	}
	return v.set(name, Value{shape: shapeSwitch, on: true})
}

// OptInt sets an integer scalar when present.
func (v Values) OptInt(name string, o Opt[int]) Values {
	if x, ok := o.Get(); ok {
		return v.Int(name, x)
	}
	return v
}

// OptFloat sets a floating scalar when present.
func (v Values) OptFloat(name string, o Opt[float64]) Values {
	if x, ok := o.Get(); ok {
		return v.Float(name, x)
	}
	return v
}

// OptStr sets a string scalar when present.
func (v Values) OptStr(name string, o Opt[string]) Values {
	if x, ok := o.Get(); ok {
		return v.Str(name, x)
	}
	return v
}

// OptRef sets a reference when r is not nil.
func (v Values) OptRef(name string, r Referent) Values {
	if r == nil {
		return v
	}
	return v.Ref(name, r)
}

// OptInts sets an integer packet when present.
func (v Values) OptInts(name string, o Opt[[]int]) Values {
	if x, ok := o.Get(); ok {
		return v.Ints(name, x)
	}
	return v
}

// OptFloats sets a floating packet when present. Some(nil) is an empty
// packet, which is distinct from absent.
func (v Values) OptFloats(name string, o Opt[[]float64]) Values {
	if x, ok := o.Get(); ok {
		return v.Floats(name, x)
	}
	return v
}

// OptRefs sets a reference packet when present.
func (v Values) OptRefs(name string, rs []Referent) Values {
	if rs == nil {
		return v
	}
	return Refs(v, name, rs)
}

func refOf(r Referent) Ref {
	if r == nil {
		return Ref{}
	}
	return r.Ref()
}
