package bench

import (
	"context"

	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
	"github.com/abdul-hamid-achik/httpbridge/packages/transport"
)

// Client sends one request and returns its response. The response body
// has not been read yet.
type Client interface {
	Execute(ctx context.Context, req *translate.Request) (*translate.Response, error)
}

// AsyncClient starts each request on an AsyncTransport and waits for the
// pending result.
type AsyncClient struct {
	T *transport.AsyncTransport
}

func (c AsyncClient) Execute(ctx context.Context, req *translate.Request) (*translate.Response, error) {
	pending, err := c.T.HandleRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}

// SyncClient performs each request on the calling goroutine
type SyncClient struct {
	T *transport.SyncTransport
}

func (c SyncClient) Execute(ctx context.Context, req *translate.Request) (*translate.Response, error) {
	return c.T.HandleRequest(ctx, req)
}
