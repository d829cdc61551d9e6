package translate

import (
	"context"
	"net/textproto"

	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/stream"
)

// HeaderPair is one header line. Order and duplicates are significant.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request describes an exchange independently of net/http.
//
// Headers accepts nil, map[string]string, map[string][]string, http.Header,
// []HeaderPair, [][]string or [][2]string. Content accepts nil, []byte,
// string, io.Reader, [][]byte, []string, []any of strings and byte slices,
// or iter.Seq[[]byte].
type Request struct {
	Method     string
	URL        string
	Headers    any
	Content    any
	Extensions extensions.Extensions
}

// Response is the result of a successful dispatch. Exactly one of Content
// and Stream is set: Stream when the request asked for streaming, Content
// otherwise.
type Response struct {
	Status     int
	Headers    []HeaderPair
	Content    []byte
	Stream     stream.ByteStream
	Extensions extensions.Extensions
}

// IsStream reports whether the body is delivered through Stream.
func (r *Response) IsStream() bool {
	return r.Stream != nil
}

// Header returns the first value of the named header, compared case
// insensitively.
func (r *Response) Header(name string) string {
	if v := r.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns every value of the named header in order.
func (r *Response) Values(name string) []string {
	key := textproto.CanonicalMIMEHeaderKey(name)
	var out []string
	for _, h := range r.Headers {
		if textproto.CanonicalMIMEHeaderKey(h.Name) == key {
			out = append(out, h.Value)
		}
	}
	return out
}

// Body returns the full body, draining and closing the stream if there is
// one.
func (r *Response) Body(ctx context.Context) ([]byte, error) {
	if r.Stream != nil {
		return stream.Collect(ctx, r.Stream)
	}
	return r.Content, nil
}

// Close abandons the stream, if any.
func (r *Response) Close() error {
	if r.Stream != nil {
		return r.Stream.Close()
	}
	return nil
}
