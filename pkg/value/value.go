// Package value defines the values carried by widgetd variables and the
// names used to address variables and windows.
//
// A Value is a small tagged union. The zero Value is the unset sentinel a
// variable holds between the moment a window first references it and the
// first update from its producer.
package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VarName identifies a variable. Variables are global to the daemon.
type VarName string

// WindowName identifies a window definition and, while it is open, its
// single window instance.
type WindowName string

// Kind enumerates the shapes a Value can take.
type Kind int

const (
	KindUnset Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the lowercase kind name used in debug output.
func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable variable value.
type Value struct {
	kind Kind
	str  string
	num  NumWithUnit
	b    bool
	list []Value
	m    map[string]Value
}

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number constructs a numeric value with an optional unit.
func Number(f float64, unit Unit) Value {
	return Value{kind: KindNumber, num: NumWithUnit{Value: f, Unit: unit}}
}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List constructs a list value. The slice is copied.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map constructs a map value. The map is copied.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsSet reports whether v holds anything other than the unset sentinel.
func (v Value) IsSet() bool { return v.kind != KindUnset }

// AsNumber returns the numeric payload and whether v is a number.
func (v Value) AsNumber() (NumWithUnit, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Items returns a copy of a list value's elements, or nil.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp
}

// Field returns the named entry of a map value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.m[key]
	return f, ok
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnset:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the text substituted into widget attributes.
// Lists and maps render as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList, KindMap:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// MarshalJSON encodes v as its natural JSON shape. Numbers with a unit
// encode as strings so the unit survives.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindUnset:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.num.Unit != UnitNone {
			return json.Marshal(v.num.String())
		}
		return json.Marshal(v.num.Value)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("value: cannot marshal %s", v.kind)
}

// UnmarshalJSON decodes any JSON document into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts decoded JSON/TOML/YAML data into a Value.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t, UnitNone)
	case float32:
		return Number(float64(t), UnitNone)
	case int:
		return Number(float64(t), UnitNone)
	case int64:
		return Number(float64(t), UnitNone)
	case uint64:
		return Number(float64(t), UnitNone)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, FromAny(item))
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprint(t))
	}
}

// Parse infers a Value from producer output or command-line text.
//
//	"true"/"false"     -> Bool
//	"12", "12px", "4%" -> Number
//	"[..]", "{..}"     -> List / Map when the text is valid JSON
//	anything else      -> String
func Parse(text string) Value {
	trimmed := strings.TrimSpace(text)
	switch trimmed {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := ParseNumWithUnit(trimmed); err == nil {
		return Value{kind: KindNumber, num: n}
	}
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var raw any
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
			return FromAny(raw)
		}
	}
	return String(text)
}
