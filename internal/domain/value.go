package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueMap    ValueKind = "map"
)

// Value is the closed set of things a belief, fact or plan parameter can hold.
// Equality is structural.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Map  map[string]Value
}

func String(s string) Value { return Value{Kind: ValueString, Str: s} }

func Number(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

func Bool(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

func Map(m map[string]Value) Value { return Value{Kind: ValueMap, Map: m} }

func (v Value) IsZero() bool { return v.Kind == "" }

// Field returns a member of a map value.
func (v Value) Field(key string) (Value, bool) {
	if v.Kind != ValueMap {
		return Value{}, false
	}
	f, ok := v.Map[key]
	return f, ok
}

// AsNumber returns the numeric reading of v. Strings that parse as floats and
// booleans (1/0) are accepted so beliefs asserted as text can still drive goals.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Num, true
	case ValueString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == o.Str
	case ValueNumber:
		return v.Num == o.Num
	case ValueBool:
		return v.Bool == o.Bool
	case ValueMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := o.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.Map[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

type valueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var raw any
	switch v.Kind {
	case ValueString:
		raw = v.Str
	case ValueNumber:
		raw = v.Num
	case ValueBool:
		raw = v.Bool
	case ValueMap:
		m := v.Map
		if m == nil {
			m = map[string]Value{}
		}
		raw = m
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}
	inner, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.Kind, Value: inner})
}

// UnmarshalJSON accepts both the tagged form {"kind":..,"value":..} and bare
// JSON scalars/objects, which is what API clients usually send.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*v = Value{}
		return nil
	}

	var tagged valueJSON
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(data, &tagged) == nil && tagged.Kind != "" && len(tagged.Value) > 0 {
		switch tagged.Kind {
		case ValueString:
			var s string
			if err := json.Unmarshal(tagged.Value, &s); err != nil {
				return err
			}
			*v = String(s)
		case ValueNumber:
			var n float64
			if err := json.Unmarshal(tagged.Value, &n); err != nil {
				return err
			}
			*v = Number(n)
		case ValueBool:
			var b bool
			if err := json.Unmarshal(tagged.Value, &b); err != nil {
				return err
			}
			*v = Bool(b)
		case ValueMap:
			var m map[string]Value
			if err := json.Unmarshal(tagged.Value, &m); err != nil {
				return err
			}
			*v = Map(m)
		default:
			return fmt.Errorf("unknown value kind %q", tagged.Kind)
		}
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	conv, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = conv
	return nil
}

// ValueOf converts a decoded JSON value into a Value.
func ValueOf(raw any) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := ValueOf(e)
			if err != nil {
				return Value{}, fmt.Errorf("field %s: %w", k, err)
			}
			m[k] = ev
		}
		return Map(m), nil
	case Value:
		return t, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}
