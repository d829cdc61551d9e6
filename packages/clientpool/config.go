package clientpool

import (
	"context"
	"fmt"
	"net"
	"time"
)

const (
	// DefaultTimeout bounds a whole request, body included
	DefaultTimeout = 30 * time.Second
	// DefaultMaxIdleConnsPerHost is the number of idle connections kept per host
	DefaultMaxIdleConnsPerHost = 64
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultMaxRetries is carried in the config but never acted on
	DefaultMaxRetries = 3
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// Version is stamped into the default user agent. The CLI overrides it at
// build time.
var Version = "dev"

// Config describes how a pooled client is built. A Client never observes
// changes made to a Config after construction.
type Config struct {
	Timeout             time.Duration
	ConnectTimeout      time.Duration // defaults to Timeout
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	// MaxRetries is a pass-through setting; dispatch does not retry.
	MaxRetries   int
	UserAgent    string
	PreferHTTP2  bool
	MaxRedirects int // negative disables redirect following

	InsecureSkipVerify bool
	Proxy              string

	// DialContext replaces the default dialer when set.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		ConnectTimeout:      DefaultTimeout,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxRetries:          DefaultMaxRetries,
		UserAgent:           DefaultUserAgent(),
		PreferHTTP2:         true,
		MaxRedirects:        DefaultMaxRedirects,
	}
}

// DefaultUserAgent returns "httpbridge/<version>".
func DefaultUserAgent() string {
	return "httpbridge/" + Version
}

// Validate checks if the config can be used to build a client
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout cannot be negative")
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("max idle connections per host cannot be negative")
	}
	if c.IdleConnTimeout < 0 {
		return fmt.Errorf("idle connection timeout cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = c.Timeout
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	return c
}
