package extensions

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct{ X, Y int }

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
		str  string
	}{
		{"nil", nil, Null, "null"},
		{"bool", true, Bool, "true"},
		{"int", 42, Int, "42"},
		{"int64", int64(-7), Int, "-7"},
		{"uint8", uint8(9), Int, "9"},
		{"huge uint", uint64(1 << 63), String, "9223372036854775808"},
		{"float", 5.0, Float, "5"},
		{"float32", float32(0.5), Float, "0.5"},
		{"string", "abc", String, "abc"},
		{"bytes", []byte("raw"), String, "raw"},
		{"struct falls back to string", point{1, 2}, String, "{1 2}"},
		{"duration is a stringer", 2 * time.Second, String, "2s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromAny(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name string
		ext  Extensions
		want time.Duration
		ok   bool
	}{
		{"absent", Extensions{}, 0, false},
		{"float seconds", Extensions{"timeout": FloatValue(5.0)}, 5 * time.Second, true},
		{"fractional", Extensions{"timeout": FloatValue(0.25)}, 250 * time.Millisecond, true},
		{"int seconds", Extensions{"timeout": IntValue(2)}, 2 * time.Second, true},
		{"zero ignored", Extensions{"timeout": FloatValue(0)}, 0, false},
		{"negative ignored", Extensions{"timeout": FloatValue(-1)}, 0, false},
		{"string ignored", Extensions{"timeout": StringValue("5")}, 0, false},
		{"null ignored", Extensions{"timeout": NullValue()}, 0, false},
		{"huge clamped", Extensions{"timeout": FloatValue(1e12)}, time.Duration(math.MaxInt64), true},
		{"infinite clamped", Extensions{"timeout": FloatValue(math.Inf(1))}, time.Duration(math.MaxInt64), true},
		{"nan ignored", Extensions{"timeout": FloatValue(math.NaN())}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ext.Timeout()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreaming(t *testing.T) {
	assert.False(t, Extensions(nil).Streaming())
	assert.False(t, Extensions{"stream": BoolValue(false)}.Streaming())
	assert.False(t, Extensions{"stream": StringValue("true")}.Streaming())
	assert.True(t, Extensions{"stream": BoolValue(true)}.Streaming())
}

func TestParseJSON(t *testing.T) {
	ext, err := ParseJSON([]byte(`{"timeout": 5.0, "stream": true, "x": "y", "n": 3, "z": null, "nested": {"a": [1, 2]}}`))
	require.NoError(t, err)

	assert.Equal(t, FloatValue(5.0), ext["timeout"])
	assert.Equal(t, BoolValue(true), ext["stream"])
	assert.Equal(t, StringValue("y"), ext["x"])
	assert.Equal(t, IntValue(3), ext["n"])
	assert.True(t, ext["z"].IsNull())
	assert.Equal(t, StringValue(`{"a": [1, 2]}`), ext["nested"])
	assert.Equal(t, []string{"n", "nested", "stream", "timeout", "x", "z"}, ext.Keys())
}

func TestParseJSON_Rejects(t *testing.T) {
	_, err := ParseJSON([]byte(`{"broken"`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`[1, 2]`))
	assert.ErrorContains(t, err, "must be a JSON object")
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in   string
		key  string
		want Value
	}{
		{"timeout=5", "timeout", IntValue(5)},
		{"timeout=2.5", "timeout", FloatValue(2.5)},
		{"stream=true", "stream", BoolValue(true)},
		{"x=null", "x", NullValue()},
		{`x="quoted"`, "x", StringValue("quoted")},
		{"x=plain text", "x", StringValue("plain text")},
		{"x=[1,2]", "x", StringValue("[1,2]")},
		{"x=", "x", StringValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, v, err := ParseAssignment(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.want, v)
		})
	}

	_, _, err := ParseAssignment("novalue")
	assert.Error(t, err)
	_, _, err = ParseAssignment("=5")
	assert.Error(t, err)
}

func TestClone_Independent(t *testing.T) {
	ext := Extensions{"x": StringValue("y")}
	c := ext.Clone()
	c["x"] = StringValue("changed")
	assert.Equal(t, StringValue("y"), ext["x"])
	assert.Nil(t, Extensions(nil).Clone())
}

func TestJSONRoundTrip(t *testing.T) {
	ext := FromMap(map[string]any{"timeout": 5.5, "stream": true, "x": "y"})

	data, err := json.Marshal(ext)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout": 5.5, "stream": true, "x": "y"}`, string(data))

	var back Extensions
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ext, back)
}
