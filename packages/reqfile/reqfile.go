package reqfile

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Document is a validated request document
type Document struct {
	Method        string          `json:"method"`
	URL           string          `json:"url"`
	Headers       json.RawMessage `json:"headers,omitempty"`
	Content       *string         `json:"content,omitempty"`
	ContentBase64 string          `json:"contentBase64,omitempty"`
	JSON          json.RawMessage `json:"json,omitempty"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}

// ValidationError lists every schema violation in a document
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request document %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Expander fills placeholders in raw document text before it is parsed
type Expander interface {
	Expand(string) (string, error)
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	expander Expander
}

// WithExpander expands placeholders in the document text before parsing.
func WithExpander(e Expander) LoadOption {
	return func(o *loadOptions) {
		o.expander = e
	}
}

// Load reads and validates the document at path. JSON and YAML files are
// both accepted whatever their extension, since Parse decodes YAML.
func Load(path string, opts ...LoadOption) (*Document, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	if o.expander != nil {
		text, err := o.expander.Expand(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		data = []byte(text)
	}
	return Parse(data, path)
}

// Parse validates data. source names the document in errors. YAML is a
// superset of JSON so both formats decode the same way.
func Parse(data []byte, source string) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	if raw == nil {
		return nil, &ValidationError{Source: source, Problems: []string{"document is empty"}}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", source, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(normalized))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Source: source, Problems: problems}
	}

	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", source, err)
	}
	return &doc, nil
}

// Request converts the document into a transport request
func (d *Document) Request() (*translate.Request, error) {
	req := &translate.Request{
		Method: d.Method,
		URL:    d.URL,
	}

	h, err := d.headers()
	if err != nil {
		return nil, err
	}

	switch {
	case d.Content != nil:
		req.Content = []byte(*d.Content)
	case d.ContentBase64 != "":
		body, err := base64.StdEncoding.DecodeString(d.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid contentBase64: %w", err)
		}
		req.Content = body
	case len(d.JSON) > 0:
		req.Content = []byte(d.JSON)
		h.setDefault("Content-Type", "application/json")
	}
	req.Headers = h.value()

	if len(d.Extensions) > 0 {
		ext, err := extensions.ParseJSON(d.Extensions)
		if err != nil {
			return nil, err
		}
		req.Extensions = ext
	}

	return req, nil
}

func (d *Document) headers() (*headerSet, error) {
	h := &headerSet{}
	if len(d.Headers) == 0 {
		return h, nil
	}
	if d.Headers[0] == '[' {
		if err := json.Unmarshal(d.Headers, &h.pairs); err != nil {
			return nil, fmt.Errorf("invalid headers: %w", err)
		}
		return h, nil
	}
	if err := json.Unmarshal(d.Headers, &h.fields); err != nil {
		return nil, fmt.Errorf("invalid headers: %w", err)
	}
	return h, nil
}

// LoadRequest is Load followed by Request
func LoadRequest(path string, opts ...LoadOption) (*translate.Request, error) {
	doc, err := Load(path, opts...)
	if err != nil {
		return nil, err
	}
	return doc.Request()
}

// IsRequestFile reports whether path looks like a request document
func IsRequestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
