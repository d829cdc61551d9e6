package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/diag"
	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

// AsyncTransport dispatches requests in the background over the process-wide
// shared client. Any number of instances may exist; they all use the same
// client.
type AsyncTransport struct {
	dispatcher *translate.Dispatcher
	logger     *zap.Logger
}

// NewAsync creates an async transport. It fails only if the shared client
// cannot be built.
func NewAsync(opts ...Option) (*AsyncTransport, error) {
	diag.Enable()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = diag.Named("async")
	}

	client := o.client
	if client == nil {
		var err error
		client, err = clientpool.Shared(o.configs()...)
		if err != nil {
			return nil, err
		}
	}

	return &AsyncTransport{
		dispatcher: translate.NewDispatcher(client,
			translate.WithMetrics(o.metrics),
			translate.WithLogger(o.logger),
		),
		logger: o.logger,
	}, nil
}

// Client returns the client this transport dispatches through.
func (t *AsyncTransport) Client() *clientpool.Client {
	return t.dispatcher.Client()
}

// HandleRequest validates req and starts dispatching it without blocking.
// Validation failures are returned immediately; network failures arrive
// through the Pending. ctx bounds the exchange and, for streamed responses,
// the body.
func (t *AsyncTransport) HandleRequest(ctx context.Context, req *translate.Request) (*Pending, error) {
	native, err := translate.BuildNativeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	p := newPending()
	go func() {
		resp, err := t.dispatcher.Dispatch(ctx, native, req.Extensions)
		if err == nil && ctx.Err() != nil {
			// nobody can read a body whose context already ended
			_ = resp.Close()
		}
		p.complete(resp, err)
	}()
	return p, nil
}

// Close does nothing. The shared client outlives every transport.
func (t *AsyncTransport) Close() error {
	return nil
}

// Pending is the eventual outcome of an async request.
type Pending struct {
	done chan struct{}

	mu        sync.Mutex
	settled   bool
	abandoned bool
	resp      *translate.Response
	err       error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// complete records the outcome. A response that arrives after its waiter
// gave up is closed so its stream producer and connection are released.
func (p *Pending) complete(resp *translate.Response, err error) {
	p.mu.Lock()
	p.resp, p.err = resp, err
	p.settled = true
	abandoned := p.abandoned
	p.mu.Unlock()

	close(p.done)
	if abandoned && resp != nil {
		_ = resp.Close()
	}
}

// abandon marks p as having no waiter. It reports false, and marks
// nothing, if the outcome has already arrived.
func (p *Pending) abandon() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.abandoned = true
	return true
}

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome is available or ctx ends. Giving up on a
// Pending does not cancel the request, but a response that arrives later is
// closed rather than left with no owner. Cancel the context passed to
// HandleRequest to stop the request itself.
func (p *Pending) Wait(ctx context.Context) (*translate.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		if !p.abandon() {
			return p.resp, p.err
		}
		return nil, httperr.Wrap(httperr.Other, ctx.Err())
	}
}
