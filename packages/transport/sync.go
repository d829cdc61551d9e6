package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/diag"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

// SyncTransport dispatches on the calling goroutine over a client it owns.
// Streamed responses are read in full before HandleRequest returns.
type SyncTransport struct {
	dispatcher *translate.Dispatcher
	logger     *zap.Logger
}

// NewSync creates a sync transport with a freshly built client.
func NewSync(opts ...Option) (*SyncTransport, error) {
	diag.Enable()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = diag.Named("sync")
	}

	client := o.client
	if client == nil {
		var err error
		client, err = clientpool.NewBlocking(o.configs()...)
		if err != nil {
			return nil, err
		}
		o.metrics.ClientBuilt("sync")
	}

	return &SyncTransport{
		dispatcher: translate.NewDispatcher(client,
			translate.WithBuffered(true),
			translate.WithMetrics(o.metrics),
			translate.WithLogger(o.logger),
		),
		logger: o.logger,
	}, nil
}

// Client returns the client owned by this transport.
func (t *SyncTransport) Client() *clientpool.Client {
	return t.dispatcher.Client()
}

// HandleRequest performs the exchange and blocks until it is fully
// classified.
func (t *SyncTransport) HandleRequest(ctx context.Context, req *translate.Request) (*translate.Response, error) {
	native, err := translate.BuildNativeRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return t.dispatcher.Dispatch(ctx, native, req.Extensions)
}

// Close does nothing. Idle connections are reclaimed with the client.
func (t *SyncTransport) Close() error {
	return nil
}
