package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
)

// Config represents the httpbridge configuration
type Config struct {
	Timeout             int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`               // milliseconds
	ConnectTimeout      int               `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"` // milliseconds
	MaxIdleConnsPerHost int               `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	IdleConnTimeout     int               `json:"idleConnTimeout,omitempty" yaml:"idleConnTimeout,omitempty"` // milliseconds
	Retries             int               `json:"retries,omitempty" yaml:"retries,omitempty"`
	FollowRedirects     *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects        int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL         *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	PreferHTTP2         *bool             `json:"preferHTTP2,omitempty" yaml:"preferHTTP2,omitempty"`
	Proxy               string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	UserAgent           string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Headers             map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for fetch
	Stream              *bool             `json:"stream,omitempty" yaml:"stream,omitempty"`
	Async               *bool             `json:"async,omitempty" yaml:"async,omitempty"`
	MetricsAddr         string            `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
	HistoryDB           string            `json:"historyDB,omitempty" yaml:"historyDB,omitempty"`
	LogLevel            string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Verbose             *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor             *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Unset booleans take the values below.

func (c *Config) GetFollowRedirects() bool { return boolOr(c.FollowRedirects, true) }
func (c *Config) GetValidateSSL() bool     { return boolOr(c.ValidateSSL, true) }
func (c *Config) GetPreferHTTP2() bool     { return boolOr(c.PreferHTTP2, true) }
func (c *Config) GetStream() bool          { return boolOr(c.Stream, false) }
func (c *Config) GetAsync() bool           { return boolOr(c.Async, false) }
func (c *Config) GetVerbose() bool         { return boolOr(c.Verbose, false) }
func (c *Config) GetNoColor() bool         { return boolOr(c.NoColor, false) }

// ClientConfig converts the settings into a client configuration
func (c *Config) ClientConfig() clientpool.Config {
	cfg := clientpool.DefaultConfig()

	if c.Timeout > 0 {
		cfg.Timeout = millis(c.Timeout)
		cfg.ConnectTimeout = cfg.Timeout
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = millis(c.ConnectTimeout)
	}
	if c.MaxIdleConnsPerHost > 0 {
		cfg.MaxIdleConnsPerHost = c.MaxIdleConnsPerHost
	}
	if c.IdleConnTimeout > 0 {
		cfg.IdleConnTimeout = millis(c.IdleConnTimeout)
	}
	if c.Retries > 0 {
		cfg.MaxRetries = c.Retries
	}
	if c.MaxRedirects > 0 {
		cfg.MaxRedirects = c.MaxRedirects
	}
	if !c.GetFollowRedirects() {
		cfg.MaxRedirects = -1
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	cfg.PreferHTTP2 = c.GetPreferHTTP2()
	cfg.InsecureSkipVerify = !c.GetValidateSSL()
	cfg.Proxy = c.Proxy

	return cfg
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ConfigFilenames are searched in order. Files without a YAML extension
// are parsed as JSON.
var ConfigFilenames = []string{
	".httpbridge.yaml",
	".httpbridge.yml",
	".httpbridge.json",
	"httpbridge.yaml",
	"httpbridge.json",
	".httpbridgerc",
}

// LoadConfig reads path, or searches the working directory when path is
// empty. Fields the file leaves out keep their defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return FindAndLoadConfig(".")
	}
	return readFile(path)
}

// FindAndLoadConfig loads the first of ConfigFilenames present in dir, or
// the defaults when there is none
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, name := range ConfigFilenames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return readFile(path)
		}
	}
	return DefaultConfig(), nil
}

type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	yamlCodec = codec{yaml.Marshal, yaml.Unmarshal}
	jsonCodec = codec{
		marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		unmarshal: json.Unmarshal,
	}
)

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec
	}
	return jsonCodec
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := codecFor(path).unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// SaveConfig writes c to path, as YAML or JSON depending on the extension
func (c *Config) SaveConfig(path string) error {
	data, err := codecFor(path).marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// override sets *dst to v unless v is the zero value
func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// Merge returns a copy of c with every field other sets replacing c's.
// Headers are merged key by key. c is not modified.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}
	out := *c

	for _, f := range []struct{ dst, src *int }{
		{&out.Timeout, &other.Timeout},
		{&out.ConnectTimeout, &other.ConnectTimeout},
		{&out.MaxIdleConnsPerHost, &other.MaxIdleConnsPerHost},
		{&out.IdleConnTimeout, &other.IdleConnTimeout},
		{&out.Retries, &other.Retries},
		{&out.MaxRedirects, &other.MaxRedirects},
	} {
		if *f.src > 0 {
			*f.dst = *f.src
		}
	}

	override(&out.Proxy, other.Proxy)
	override(&out.UserAgent, other.UserAgent)
	override(&out.MetricsAddr, other.MetricsAddr)
	override(&out.HistoryDB, other.HistoryDB)
	override(&out.LogLevel, other.LogLevel)

	override(&out.FollowRedirects, other.FollowRedirects)
	override(&out.ValidateSSL, other.ValidateSSL)
	override(&out.PreferHTTP2, other.PreferHTTP2)
	override(&out.Stream, other.Stream)
	override(&out.Async, other.Async)
	override(&out.Verbose, other.Verbose)
	override(&out.NoColor, other.NoColor)

	if len(other.Headers) > 0 {
		out.Headers = maps.Clone(c.Headers)
		if out.Headers == nil {
			out.Headers = make(map[string]string, len(other.Headers))
		}
		maps.Copy(out.Headers, other.Headers)
	}
	return &out
}
