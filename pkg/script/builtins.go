package script

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/o3go/o3go/pkg/command"
)

type definition struct {
	schema *command.Schema
	vals   command.Values
}

func (d definition) Schema() *command.Schema { return d.schema }
func (d definition) Values() command.Values  { return d.vals }

func builtinLabel(schema *command.Schema) string {
	name := builtinName(schema.Command())
	if schema.OpType() != "" {
		return name + "." + schema.OpType()
	}
	return name
}

// newBuiltin wraps a schema as a callable. Tagged commands return the
// constructed object; control commands return their status.
func newBuiltin(ctx context.Context, s *command.Session, schema *command.Schema) *starlark.Builtin {
	return starlark.NewBuiltin(builtinLabel(schema), func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		vals, err := bindArgs(schema, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if !schema.Category().Tagged() {
			status, err := s.Run(ctx, schema, vals)
			if err != nil {
				return nil, err
			}
			return statusValue(status), nil
		}
		obj, err := command.New(ctx, s, definition{schema: schema, vals: vals})
		if err != nil {
			return nil, err
		}
		return &Object{obj: obj}, nil
	})
}

// bindArgs maps call arguments onto schema fields.
func bindArgs(schema *command.Schema, args starlark.Tuple, kwargs []starlark.Tuple) (command.Values, error) {
	fields := schema.Fields()
	if len(args) > len(fields) {
		return nil, fmt.Errorf("got %d positional arguments, want at most %d", len(args), len(fields))
	}

	vals := command.Values{}
	seen := make(map[string]bool, len(args)+len(kwargs))
	for i, arg := range args {
		f := fields[i]
		seen[f.Name] = true
		var err error
		if vals, err = setValue(vals, f, arg); err != nil {
			return nil, err
		}
	}
	for _, kv := range kwargs {
		name := string(kv[0].(starlark.String))
		f, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("unexpected keyword argument %s", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("got multiple values for %s", name)
		}
		seen[name] = true
		var err error
		if vals, err = setValue(vals, f, kv[1]); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func setValue(vals command.Values, f command.Field, v starlark.Value) (command.Values, error) {
	if v == starlark.None {
		return vals, nil
	}

	if f.Kind == command.FieldSwitch {
		b, ok := v.(starlark.Bool)
		if !ok {
			return nil, fmt.Errorf("%s: want bool, got %s", f.Name, v.Type())
		}
		return vals.Switch(f.Name, bool(b)), nil
	}

	if isList(f.Kind) {
		items, err := sequence(f.Name, v)
		if err != nil {
			return nil, err
		}
		return setList(vals, f, items)
	}

	switch f.Type {
	case command.TypeRef:
		obj, ok := v.(*Object)
		if !ok {
			return nil, fmt.Errorf("%s: want object, got %s", f.Name, v.Type())
		}
		return vals.Ref(f.Name, obj.obj), nil
	case command.TypeInt:
		switch x := v.(type) {
		case starlark.Int:
			i, err := toInt(f.Name, x)
			if err != nil {
				return nil, err
			}
			return vals.Int(f.Name, i), nil
		case starlark.Float:
			// integral floats are accepted by the core
			return vals.Float(f.Name, float64(x)), nil
		}
	case command.TypeFloat:
		if x, ok := starlark.AsFloat(v); ok {
			return vals.Float(f.Name, x), nil
		}
	case command.TypeString, command.TypeEnum:
		if x, ok := starlark.AsString(v); ok {
			return vals.Str(f.Name, x), nil
		}
	}
	return nil, fmt.Errorf("%s: want %s, got %s", f.Name, f.Type, v.Type())
}

func setList(vals command.Values, f command.Field, items []starlark.Value) (command.Values, error) {
	switch f.Type {
	case command.TypeRef:
		refs := make([]command.Referent, len(items))
		for i, item := range items {
			obj, ok := item.(*Object)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: want object, got %s", f.Name, i, item.Type())
			}
			refs[i] = obj.obj
		}
		return command.Refs(vals, f.Name, refs), nil
	case command.TypeInt:
		ints := make([]int, len(items))
		for i, item := range items {
			x, ok := item.(starlark.Int)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: want int, got %s", f.Name, i, item.Type())
			}
			n, err := toInt(f.Name, x)
			if err != nil {
				return nil, err
			}
			ints[i] = n
		}
		return vals.Ints(f.Name, ints), nil
	case command.TypeFloat:
		floats := make([]float64, len(items))
		for i, item := range items {
			x, ok := starlark.AsFloat(item)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: want float, got %s", f.Name, i, item.Type())
			}
			floats[i] = x
		}
		return vals.Floats(f.Name, floats), nil
	default:
		strs := make([]string, len(items))
		for i, item := range items {
			x, ok := starlark.AsString(item)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: want string, got %s", f.Name, i, item.Type())
			}
			strs[i] = x
		}
		return vals.Strs(f.Name, strs), nil
	}
}

func isList(k command.FieldKind) bool {
	return k == command.FieldPacket || k == command.FieldOptionalPacket || k == command.FieldFlagPacket
}

func sequence(name string, v starlark.Value) ([]starlark.Value, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: want list, got %s", name, v.Type())
	}
	var items []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		items = append(items, x)
	}
	if items == nil {
		items = []starlark.Value{}
	}
	return items, nil
}

func toInt(name string, x starlark.Int) (int, error) {
	i, ok := x.Int64()
	if !ok || int64(int(i)) != i {
		return 0, fmt.Errorf("%s: integer out of range", name)
	}
	return int(i), nil
}

func statusValue(st command.Status) starlark.Value {
	values := make([]starlark.Value, len(st.Values))
	for i, v := range st.Values {
		values[i] = starlark.Float(v)
	}
	return &Status{
		code:    st.Code,
		values:  starlark.NewList(values),
		message: st.Message,
	}
}
