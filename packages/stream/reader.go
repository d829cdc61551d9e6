package stream

import (
	"bytes"
	"context"
	"io"
)

// Reader adapts a ByteStream to io.ReadCloser. ctx bounds every wait for
// the next chunk.
func Reader(ctx context.Context, s ByteStream) io.ReadCloser {
	return &reader{ctx: ctx, s: s}
}

type reader struct {
	ctx context.Context
	s   ByteStream
	buf []byte
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.s.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *reader) Close() error {
	return r.s.Close()
}

// Collect drains s into memory and closes it.
func Collect(ctx context.Context, s ByteStream) ([]byte, error) {
	defer s.Close()

	var buf bytes.Buffer
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}
}

// Chunks drains s and returns each chunk separately. Used where chunk
// boundaries matter, such as tests and the CLI's chunk counter.
func Chunks(ctx context.Context, s ByteStream) ([][]byte, error) {
	defer s.Close()

	var out [][]byte
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
}
