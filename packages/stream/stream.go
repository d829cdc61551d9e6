package stream

import (
	"context"
	"io"
	"iter"
	"runtime"
	"sync"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
)

const (
	// DefaultCapacity is the number of chunks buffered between producer and
	// consumer before the producer blocks
	DefaultCapacity = 32
	// DefaultReadSize is the read buffer used when pulling from a network body
	DefaultReadSize = 32 * 1024
)

// ErrClosed is returned by Next after the consumer has closed the stream.
var ErrClosed = httperr.New(httperr.Other, "stream closed")

// ByteStream is a forward-only cursor over response body chunks. Next
// returns io.EOF once the body is exhausted, and keeps returning it. Close
// abandons the stream and stops any background work feeding it.
type ByteStream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

type result struct {
	chunk []byte
	err   error
}

// Option configures a Stream.
type Option func(*options)

type options struct {
	capacity int
	readSize int
	classify func(error) error
	onFinish func()
	ctx      context.Context
}

// WithCapacity sets the number of queued chunks.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithReadSize sets the read buffer size for network bodies.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithClassifier replaces the mapping applied to body read errors.
func WithClassifier(fn func(error) error) Option {
	return func(o *options) {
		o.classify = fn
	}
}

// WithOnFinish registers a callback run once the producer has exited.
func WithOnFinish(fn func()) Option {
	return func(o *options) {
		o.onFinish = fn
	}
}

// WithContext ties the producer to ctx. Once ctx is done the producer
// stops, the body is released, and the consumer receives the classified
// context error after the chunks already queued.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		capacity: DefaultCapacity,
		readSize: DefaultReadSize,
		classify: classifyRead,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func classifyRead(err error) error {
	return httperr.Classify(err, httperr.PhaseRead)
}

// Stream carries chunks from one producer goroutine to one consumer over a
// bounded queue. The producer exits as soon as the consumer closes the
// stream or the stream's context ends, even if it is blocked on a full
// queue. A Stream dropped without Close is closed when it is garbage
// collected.
type Stream struct {
	*pipe
}

// pipe is the state shared with the producer. The producer never holds the
// *Stream itself, so an abandoned handle stays collectable.
type pipe struct {
	ch       chan result
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	abort     func()

	// tail is set by the producer before ch is closed when it stopped
	// early because its context ended
	tail error

	mu        sync.Mutex
	exhausted bool
}

// FromNetwork streams body chunk by chunk as it arrives. Read errors are
// classified and delivered from the Next call that reaches them. body is
// closed when the producer exits or the stream is closed.
func FromNetwork(body io.ReadCloser, opts ...Option) *Stream {
	o := buildOptions(opts)
	closeBody := sync.OnceValue(body.Close)

	seq := func(yield func([]byte, error) bool) {
		defer closeBody()

		buf := make([]byte, o.readSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yield(chunk, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, o.classify(err))
				return
			}
		}
	}

	return start(seq, o, func() { _ = closeBody() })
}

// FromChunks streams an in-memory sequence of chunks in order.
func FromChunks(chunks [][]byte, opts ...Option) *Stream {
	seq := func(yield func([]byte, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
	return start(seq, buildOptions(opts), nil)
}

// FromSeq streams a precomputed sequence of chunks and errors. The sequence
// stops at the first error.
func FromSeq(seq iter.Seq2[[]byte, error], opts ...Option) *Stream {
	stopping := func(yield func([]byte, error) bool) {
		for chunk, err := range seq {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
	return start(stopping, buildOptions(opts), nil)
}

func start(seq iter.Seq2[[]byte, error], o *options, abort func()) *Stream {
	p := &pipe{
		ch:       make(chan result, o.capacity),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		abort:    abort,
	}
	go p.produce(o.ctx, seq, o.classify, o.onFinish)

	s := &Stream{pipe: p}
	runtime.AddCleanup(s, func(p *pipe) { _ = p.Close() }, p)
	return s
}

func (s *pipe) produce(ctx context.Context, seq iter.Seq2[[]byte, error], classify func(error) error, onFinish func()) {
	defer func() {
		close(s.ch)
		close(s.finished)
		if onFinish != nil {
			onFinish()
		}
	}()

	for chunk, err := range seq {
		select {
		case s.ch <- result{chunk: chunk, err: err}:
		case <-s.done:
			return
		case <-ctx.Done():
			s.tail = classify(ctx.Err())
			return
		}
	}
}

// Next blocks until a chunk, an error or the end of the stream is
// available. After an error or io.EOF every further call returns io.EOF.
// Cancelling ctx interrupts the wait without consuming anything.
func (s *pipe) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return nil, io.EOF
	}

	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}

	select {
	case r, ok := <-s.ch:
		if !ok {
			s.exhausted = true
			if s.tail != nil {
				return nil, s.tail
			}
			return nil, io.EOF
		}
		if r.err != nil {
			s.exhausted = true
			return nil, r.err
		}
		return r.chunk, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, httperr.Classify(ctx.Err(), httperr.PhaseRead)
	}
}

// Close abandons the stream. The producer stops and the underlying body is
// released. Close is safe to call more than once.
func (s *pipe) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.abort != nil {
			s.abort()
		}
	})
	return nil
}

// Done is closed once the producer goroutine has exited.
func (s *pipe) Done() <-chan struct{} {
	return s.finished
}
