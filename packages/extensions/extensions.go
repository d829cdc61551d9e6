package extensions

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Recognized keys. Every other key passes through untouched.
const (
	KeyTimeout = "timeout"
	KeyStream  = "stream"
)

// Extensions carries per-request options alongside the request and is
// echoed back on the response.
type Extensions map[string]Value

// FromMap converts native values with FromAny.
func FromMap(m map[string]any) Extensions {
	if m == nil {
		return nil
	}
	ext := make(Extensions, len(m))
	for k, v := range m {
		ext[k] = FromAny(v)
	}
	return ext
}

// ParseJSON parses a JSON object into extensions. Scalars keep their type;
// nested arrays and objects are kept as their raw JSON text.
func ParseJSON(data []byte) (Extensions, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid extensions JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("extensions must be a JSON object, got %s", root.Type)
	}

	ext := make(Extensions)
	root.ForEach(func(key, value gjson.Result) bool {
		ext[key.String()] = fromResult(value)
		return true
	})
	return ext, nil
}

// ParseAssignment parses "key=value". The value is read as a JSON scalar
// when it is one (5, 2.5, true, null, "quoted"), otherwise as a plain
// string.
func ParseAssignment(s string) (string, Value, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", Value{}, fmt.Errorf("invalid extension %q: expected key=value", s)
	}
	raw = strings.TrimSpace(raw)
	if gjson.Valid(raw) {
		r := gjson.Parse(raw)
		if r.Type != gjson.JSON {
			return key, fromResult(r), nil
		}
	}
	return key, StringValue(raw), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return NullValue()
	case gjson.True:
		return BoolValue(true)
	case gjson.False:
		return BoolValue(false)
	case gjson.Number:
		if strings.ContainsAny(r.Raw, ".eE") {
			return FloatValue(r.Float())
		}
		return IntValue(r.Int())
	case gjson.String:
		return StringValue(r.String())
	default:
		return StringValue(r.Raw)
	}
}

// Timeout returns the per-request timeout when "timeout" holds a strictly
// positive number of seconds. Values too large for a time.Duration are
// clamped to the largest one.
func (e Extensions) Timeout() (time.Duration, bool) {
	v, ok := e[KeyTimeout]
	if !ok {
		return 0, false
	}
	secs, ok := v.Float()
	if !ok || !(secs > 0) {
		return 0, false
	}
	ns := secs * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(ns), true
}

// Streaming reports whether "stream" is set to true.
func (e Extensions) Streaming() bool {
	b, ok := e[KeyStream].Bool()
	return ok && b
}

// Get returns the value stored under key.
func (e Extensions) Get(key string) (Value, bool) {
	v, ok := e[key]
	return v, ok
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	return maps.Clone(e)
}

// Keys returns the keys in sorted order.
func (e Extensions) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// Map converts back to native Go values.
func (e Extensions) Map() map[string]any {
	if e == nil {
		return nil
	}
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = v.Any()
	}
	return out
}

// MarshalJSON encodes the extensions as a flat JSON object.
func (e Extensions) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

// UnmarshalJSON decodes a flat JSON object.
func (e *Extensions) UnmarshalJSON(data []byte) error {
	ext, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*e = ext
	return nil
}
