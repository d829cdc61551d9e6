package clientpool

import (
	"sync"
)

// Constructor builds a client from a config.
type Constructor func(Config) (*Client, error)

// Pool lazily builds one client and hands the same instance to every caller.
// Concurrent first calls result in exactly one construction. Configuration
// passed after the first call is ignored.
type Pool struct {
	once   sync.Once
	build  Constructor
	client *Client
	err    error
}

// NewPool creates a pool that builds its client with build, or New if nil.
func NewPool(build Constructor) *Pool {
	if build == nil {
		build = New
	}
	return &Pool{build: build}
}

// Get returns the pooled client, building it from cfg (or DefaultConfig) on
// the first call. A construction error is sticky.
func (p *Pool) Get(cfg ...Config) (*Client, error) {
	p.once.Do(func() {
		c := DefaultConfig()
		if len(cfg) > 0 {
			c = cfg[0]
		}
		p.client, p.err = p.build(c)
	})
	return p.client, p.err
}

var shared = NewPool(New)

// Shared returns the process-wide client used by asynchronous transports.
func Shared(cfg ...Config) (*Client, error) {
	return shared.Get(cfg...)
}

// NewBlocking builds a fresh client for a synchronous transport. It never
// touches the shared client.
func NewBlocking(cfg ...Config) (*Client, error) {
	c := DefaultConfig()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return New(c)
}
