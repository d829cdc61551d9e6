package extensions

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the dynamic type held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a scalar extension value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: Int, i: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{kind: Float, f: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// Kind returns the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// FromAny converts a native Go value. Booleans, integers, floats and
// strings map to their kind; nil maps to null; anything else is converted
// to its string form.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int8:
		return IntValue(int64(t))
	case int16:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return IntValue(int64(t))
	case uint16:
		return IntValue(int64(t))
	case uint32:
		return IntValue(int64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case fmt.Stringer:
		return StringValue(t.String())
	default:
		return StringValue(fmt.Sprint(t))
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return StringValue(strconv.FormatUint(u, 10))
	}
	return IntValue(int64(u))
}

// Bool returns the boolean and whether v holds one.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == Bool
}

// Int returns the integer and whether v holds one.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == Int
}

// Float returns v as a float for both numeric kinds.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case Float:
		return v.f, true
	case Int:
		return float64(v.i), true
	}
	return 0, false
}

// Str returns the string and whether v holds one.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == String
}

// Any returns the native Go value held by v.
func (v Value) Any() any {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.b)
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	}
	return "null"
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}
