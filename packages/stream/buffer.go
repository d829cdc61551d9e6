package stream

import (
	"context"
	"io"
	"sync"
)

// Buffered is the synchronous form of a ByteStream. The whole body is read
// before the handle is returned, so it yields exactly one element: the
// body as a single chunk, or the error that interrupted reading.
type Buffered struct {
	mu   sync.Mutex
	item *result
}

// Buffer reads body to completion and closes it. Read errors are classified
// the same way FromNetwork classifies them.
func Buffer(body io.ReadCloser, opts ...Option) *Buffered {
	o := buildOptions(opts)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return &Buffered{item: &result{err: o.classify(err)}}
	}
	if data == nil {
		data = []byte{}
	}
	return &Buffered{item: &result{chunk: data}}
}

// Bytes wraps an already materialized body.
func Bytes(data []byte) *Buffered {
	return &Buffered{item: &result{chunk: data}}
}

// Next returns the buffered element once, then io.EOF.
func (b *Buffered) Next(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.item == nil {
		return nil, io.EOF
	}
	r := b.item
	b.item = nil
	if r.err != nil {
		return nil, r.err
	}
	return r.chunk, nil
}

// Close discards anything not yet consumed.
func (b *Buffered) Close() error {
	b.mu.Lock()
	b.item = nil
	b.mu.Unlock()
	return nil
}
