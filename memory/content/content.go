// Package content models the structured payload attached to a memory record.
//
// A payload is a closed JSON-shaped tree (Value) rather than a bare
// interface{}: callers build values through typed constructors, and the
// plain-text rendering used for embeddings follows explicit, versioned rules
// (see Render) so stored vectors stay reproducible across releases.
package content

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one node of a payload tree. The zero Value is Null.
//
// Values are read-only after construction; the constructors take ownership
// of any map or slice passed to them.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	list []Value
	obj  map[string]Value
}

// Null returns the null Value. Equivalent to the zero Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// List returns a list Value over the given items.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map returns a map Value over the given fields.
func Map(fields map[string]Value) Value { return Value{kind: KindMap, obj: fields} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean variant, or false for any other kind.
func (v Value) Bool() bool { return v.b }

// Float returns the numeric variant, or 0 for any other kind.
func (v Value) Float() float64 { return v.num }

// Str returns the string variant, or "" for any other kind.
func (v Value) Str() string { return v.str }

// Items returns the list variant's items, or nil for any other kind.
func (v Value) Items() []Value { return v.list }

// Fields returns the map variant's fields, or nil for any other kind.
func (v Value) Fields() map[string]Value { return v.obj }

// Get looks up a field of a map Value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Empty reports whether v carries no usable payload: null, a blank string,
// or a list/map with no elements.
func (v Value) Empty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.obj) == 0
	default:
		return false
	}
}

// String implements fmt.Stringer: the raw string for string Values, the
// compact JSON encoding for everything else.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<invalid %s value>", v.kind)
	}
	return string(b)
}

// FromAny converts a JSON-decoded Go value into a Value. Accepted inputs are
// nil, bool, string, the common numeric types, json.Number, []any,
// map[string]any, and Value itself. Non-finite numbers are rejected because
// they have no JSON rendering.
func FromAny(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return number(x)
	case float32:
		return number(float64(x))
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("content: invalid number %q: %w", x, err)
		}
		return number(f)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Map(fields), nil
	default:
		return Value{}, fmt.Errorf("content: unsupported type %T", in)
	}
}

func number(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("content: non-finite number %v", f)
	}
	return Number(f), nil
}

// Interface converts v back into plain Go values (nil, bool, float64,
// string, []any, map[string]any), the inverse of FromAny.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindList:
		items := make([]any, len(v.list))
		for i, e := range v.list {
			items[i] = e.Interface()
		}
		return items
	case KindMap:
		fields := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			fields[k] = e.Interface()
		}
		return fields
	default:
		return nil
	}
}

// Parse decodes JSON bytes into a Value.
func Parse(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("content: parse: %w", err)
	}
	return FromAny(raw)
}

// MarshalJSON encodes v compactly with sorted map keys.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON value into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
