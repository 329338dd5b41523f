package metadata

import (
	"math"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindString represents a string value.
	KindString
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindBool represents a boolean value.
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a small typed value used for metadata documents and filters.
//
// The representation keeps filter evaluation free of reflection: a value is
// exactly one of string, number (int or float) or bool.
//
// NOTE: This is also used for persistence; keep it stable.
type Value struct {
	Kind Kind    `json:"k" msgpack:"k"`
	S    string  `json:"s,omitempty" msgpack:"s,omitempty"`
	I64  int64   `json:"i,omitempty" msgpack:"i,omitempty"`
	F64  float64 `json:"f,omitempty" msgpack:"f,omitempty"`
	B    bool    `json:"b,omitempty" msgpack:"b,omitempty"`
}

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// IsValid reports whether v holds one of the supported kinds.
func (v Value) IsValid() bool {
	return v.Kind >= KindString && v.Kind <= KindBool
}

// IsNumber reports whether v is an int or a float.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the numeric value of an int or float.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I64), true
	case KindFloat:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// Any returns v as a plain Go value (string, int64, float64 or bool).
func (v Value) Any() any {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return v.I64
	case KindFloat:
		return v.F64
	case KindBool:
		return v.B
	default:
		return nil
	}
}

// Equal reports whether two values are equal. Ints and floats compare
// numerically.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 == o.I64
		}
		a, _ := v.AsFloat64()
		b, _ := o.AsFloat64()
		return a == b
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindBool:
		return v.B == o.B
	default:
		return false
	}
}

// Compare orders two numbers or two strings. ok is false when the values
// are not mutually ordered (mixed kinds, bools, invalid).
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.IsNumber() && o.IsNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			switch {
			case v.I64 < o.I64:
				return -1, true
			case v.I64 > o.I64:
				return 1, true
			default:
				return 0, true
			}
		}
		a, _ := v.AsFloat64()
		b, _ := o.AsFloat64()
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	}
	if v.Kind == KindString && o.Kind == KindString {
		switch {
		case v.S < o.S:
			return -1, true
		case v.S > o.S:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// Document is a typed metadata document.
type Document map[string]Value

// Clone creates a copy of the metadata document.
// Values are plain data, so a shallow map copy is a deep copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// Equal reports whether two documents hold the same keys and values.
func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || v.Kind != ov.Kind || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Validate returns an error naming the first key holding an invalid value.
func (d Document) Validate() error {
	for k, v := range d {
		if k == "" {
			return &InvalidValueError{Key: k, Reason: "empty key"}
		}
		if !v.IsValid() {
			return &InvalidValueError{Key: k, Reason: "invalid value kind"}
		}
		if v.Kind == KindFloat && (math.IsNaN(v.F64) || math.IsInf(v.F64, 0)) {
			return &InvalidValueError{Key: k, Reason: "non-finite number"}
		}
	}
	return nil
}
