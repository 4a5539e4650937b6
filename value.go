package samplez

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind is the type held by a Value.
type ValueKind int

const (
	// KindString holds a string.
	KindString ValueKind = iota
	// KindNumber holds a float64.
	KindNumber
	// KindBool holds a bool.
	KindBool
)

// Value is a span data value: a string, a number or a bool.
// The zero value is the empty string.
type Value struct {
	s    string
	n    float64
	kind ValueKind
	b    bool
}

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// NumberValue returns a Value holding n.
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }

// IntValue returns a Value holding i as a number.
func IntValue(i int64) Value { return Value{kind: KindNumber, n: float64(i)} }

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the type held by v.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string held by v and whether v holds a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the number held by v and whether v holds a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsBool returns the bool held by v and whether v holds a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// String formats v regardless of kind.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool { return v == o }

// MarshalJSON encodes v as a JSON string, number or bool.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

// UnmarshalJSON decodes a JSON string, number or bool into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: %w", data, err)
		}
		*v = NumberValue(n)
	}
	return nil
}
