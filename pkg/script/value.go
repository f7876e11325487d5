package script

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/o3go/o3go/pkg/command"
)

// Object is a constructed command as seen by a script. Passing it to a
// reference field references the command's tag.
type Object struct {
	obj *command.Object
}

var (
	_ starlark.HasAttrs = (*Object)(nil)
	_ starlark.HasAttrs = (*Status)(nil)
)

// Unwrap returns the underlying command object.
func (o *Object) Unwrap() *command.Object { return o.obj }

func (o *Object) String() string        { return o.obj.Line() }
func (o *Object) Type() string          { return "object" }
func (o *Object) Freeze()               {}
func (o *Object) Truth() starlark.Bool  { return starlark.True }
func (o *Object) Hash() (uint32, error) { return uint32(o.obj.Seq()), nil }

var objectAttrs = []string{"category", "line", "op_type", "tag"}

func (o *Object) Attr(name string) (starlark.Value, error) {
	switch name {
	case "tag":
		return starlark.MakeInt(o.obj.Tag()), nil
	case "category":
		return starlark.String(o.obj.Category().String()), nil
	case "op_type":
		return starlark.String(o.obj.OpType()), nil
	case "line":
		return starlark.String(o.obj.Line()), nil
	}
	return nil, nil
}

func (o *Object) AttrNames() []string { return objectAttrs }

// Status is the engine's answer to a control command.
type Status struct {
	code    int
	values  *starlark.List
	message string
}

func (s *Status) String() string {
	return fmt.Sprintf("status(code=%d, values=%s)", s.code, s.values)
}
func (s *Status) Type() string          { return "status" }
func (s *Status) Freeze()               { s.values.Freeze() }
func (s *Status) Truth() starlark.Bool  { return s.code == 0 }
func (s *Status) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: status") }

var statusAttrs = []string{"code", "message", "ok", "values"}

func (s *Status) Attr(name string) (starlark.Value, error) {
	switch name {
	case "code":
		return starlark.MakeInt(s.code), nil
	case "ok":
		return starlark.Bool(s.code == 0), nil
	case "values":
		return s.values, nil
	case "message":
		return starlark.String(s.message), nil
	}
	return nil, nil
}

func (s *Status) AttrNames() []string { return statusAttrs }

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []float64:
		list := make([]starlark.Value, len(val))
		for i, f := range val {
			list[i] = starlark.Float(f)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value. Objects become
// their references.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *Object:
		return val.obj.Ref(), nil
	case *Status:
		out, err := fromStarlarkValue(val.values)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"code": int64(val.code), "values": out}, nil
	case *starlark.List:
		return fromIndexable(val)
	case starlark.Tuple:
		return fromIndexable(val)
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromIndexable(val starlark.Indexable) (interface{}, error) {
	list := make([]interface{}, val.Len())
	for i := 0; i < val.Len(); i++ {
		item, err := fromStarlarkValue(val.Index(i))
		if err != nil {
			return nil, err
		}
		list[i] = item
	}
	return list, nil
}
