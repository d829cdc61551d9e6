package reqfile

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/core/env"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

func TestLoad_YAML(t *testing.T) {
	req, err := LoadRequest("testdata/post.yaml")
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://localhost:8000/items", req.URL)
	assert.Equal(t, map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}, req.Headers)

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Content.([]byte), &body))
	assert.Equal(t, map[string]any{"name": "widget", "count": float64(3)}, body)

	timeout, ok := req.Extensions.Timeout()
	assert.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, timeout)
	assert.True(t, req.Extensions.Streaming())
	assert.Equal(t, extensions.StringValue("abc"), req.Extensions["trace"])
}

func TestLoad_JSONPairs(t *testing.T) {
	req, err := LoadRequest("testdata/get.json")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"X-Trace", "1"}, {"X-Trace", "2"}}, req.Headers)
	assert.Nil(t, req.Content)
	assert.Nil(t, req.Extensions)
}

func TestParse_ContentVariants(t *testing.T) {
	doc, err := Parse([]byte(`{"method": "PUT", "url": "http://x", "content": "plain"}`), "inline")
	require.NoError(t, err)
	req, err := doc.Request()
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), req.Content)
	assert.Nil(t, req.Headers)

	doc, err = Parse([]byte("method: PUT\nurl: http://x\ncontentBase64: aGVsbG8=\n"), "inline")
	require.NoError(t, err)
	req, err = doc.Request()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), req.Content)

	doc, err = Parse([]byte(`{"method": "PUT", "url": "http://x", "content": ""}`), "inline")
	require.NoError(t, err)
	req, err = doc.Request()
	require.NoError(t, err)
	assert.Equal(t, []byte{}, req.Content)
}

func TestParse_JSONKeepsExplicitContentType(t *testing.T) {
	doc, err := Parse([]byte(`{"method": "POST", "url": "http://x", "headers": [["content-type", "application/vnd+json"]], "json": [1, 2]}`), "inline")
	require.NoError(t, err)

	req, err := doc.Request()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"content-type", "application/vnd+json"}}, req.Headers)
	assert.Equal(t, "[1,2]", string(req.Content.([]byte)))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing method", `{"url": "http://x"}`},
		{"missing url", `{"method": "GET"}`},
		{"bad method", `{"method": "GE T", "url": "http://x"}`},
		{"unknown field", `{"method": "GET", "url": "http://x", "body": "?"}`},
		{"header pair too long", `{"method": "GET", "url": "http://x", "headers": [["a", "b", "c"]]}`},
		{"header value not string", `{"method": "GET", "url": "http://x", "headers": {"a": 1}}`},
		{"nested extension", `{"method": "GET", "url": "http://x", "extensions": {"a": {"b": 1}}}`},
		{"timeout not a number", `{"method": "GET", "url": "http://x", "extensions": {"timeout": "5"}}`},
		{"two bodies", `{"method": "GET", "url": "http://x", "content": "a", "json": {}}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "inline")
			require.Error(t, err)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("method: [unclosed"), "broken.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	assert.ErrorContains(t, err, "failed to read request file")
}

func TestLoad_Expander(t *testing.T) {
	t.Setenv("BRIDGE_TEST_TOKEN", "abc")
	r := env.NewResolver(env.WithVariables(map[string]string{"host": "localhost:8000", "id": "7"}))

	req, err := LoadRequest("testdata/templated.yaml", WithExpander(r))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/items/7", req.URL)

	h, err := translate.BuildHeaders(req.Headers)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", h.Get("Authorization"))
}

func TestLoad_ExpanderMissingVariable(t *testing.T) {
	r := env.NewResolver(env.WithLookupEnv(func(string) (string, bool) { return "", false }))

	_, err := Load("testdata/templated.yaml", WithExpander(r))
	require.Error(t, err)

	var ue *env.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "templated.yaml")
}

func TestValidationError_Message(t *testing.T) {
	_, err := Parse([]byte(`{"url": "http://x"}`), "doc.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc.json")
	assert.Contains(t, err.Error(), "method")
}

func TestIsRequestFile(t *testing.T) {
	assert.True(t, IsRequestFile("a.yaml"))
	assert.True(t, IsRequestFile("a.YML"))
	assert.True(t, IsRequestFile("a.json"))
	assert.False(t, IsRequestFile("a.txt"))
}
