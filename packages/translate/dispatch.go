package translate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
	"github.com/abdul-hamid-achik/httpbridge/packages/stream"
)

// Dispatcher sends native requests through a client and converts the
// result into a Response.
type Dispatcher struct {
	client   *clientpool.Client
	buffered bool
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithBuffered makes streamed bodies load fully before Dispatch returns.
func WithBuffered(buffered bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.buffered = buffered
	}
}

// WithMetrics records dispatch and stream metrics on m.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher bound to client.
func NewDispatcher(client *clientpool.Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Client returns the client requests go through.
func (d *Dispatcher) Client() *clientpool.Client {
	return d.client
}

// Dispatch performs one exchange. A positive "timeout" extension replaces
// the client default for the whole exchange, body included. Failures are
// classified by the phase they happened in.
func (d *Dispatcher) Dispatch(ctx context.Context, native *http.Request, ext extensions.Extensions) (*Response, error) {
	timeout, _ := ext.Timeout()

	var gotConn, writeFailed atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			gotConn.Store(true)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				writeFailed.Store(true)
			}
		},
	}
	native = native.WithContext(httptrace.WithClientTrace(ctx, trace))

	method := native.Method
	start := time.Now()
	d.metrics.RequestStarted()

	resp, err := d.client.Do(native, timeout)
	if err != nil {
		phase := httperr.PhaseSend
		switch {
		case !gotConn.Load():
			phase = httperr.PhaseConnect
		case writeFailed.Load():
			phase = httperr.PhaseWrite
		}
		herr := httperr.Classify(err, phase)
		d.metrics.RequestFinished(method, herr.Kind.String(), 0, time.Since(start))
		d.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", native.URL.Redacted()),
			zap.Stringer("kind", herr.Kind),
			zap.Error(err),
		)
		return nil, herr
	}
	d.metrics.RequestFinished(method, metrics.OutcomeOK, resp.StatusCode, time.Since(start))

	out := &Response{
		Status:     resp.StatusCode,
		Headers:    orderedHeaders(resp.Header),
		Extensions: ext,
	}

	d.logger.Debug("response received",
		zap.String("method", method),
		zap.String("url", native.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.String("proto", resp.Proto),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("stream", ext.Streaming()),
	)

	switch {
	case ext.Streaming() && !d.buffered:
		d.metrics.StreamOpened()
		body := &countingBody{ReadCloser: resp.Body, metrics: d.metrics}
		out.Stream = stream.FromNetwork(body,
			stream.WithContext(ctx),
			stream.WithOnFinish(d.metrics.StreamClosed),
		)
	case ext.Streaming():
		out.Stream = stream.Buffer(resp.Body)
	default:
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, httperr.Classify(err, httperr.PhaseRead)
		}
		out.Content = data
	}

	return out, nil
}

// orderedHeaders flattens h with names sorted and each name's values in
// received order.
func orderedHeaders(h http.Header) []HeaderPair {
	names := make([]string, 0, len(h))
	n := 0
	for name, values := range h {
		names = append(names, name)
		n += len(values)
	}
	slices.Sort(names)

	out := make([]HeaderPair, 0, n)
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, HeaderPair{Name: name, Value: v})
		}
	}
	return out
}

type countingBody struct {
	io.ReadCloser
	metrics *metrics.Metrics
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.metrics.StreamRead(n)
	return n, err
}
