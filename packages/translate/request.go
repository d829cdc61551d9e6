package translate

import (
	"bytes"
	"context"
	"io"
	"iter"
	"maps"
	"net/http"
	neturl "net/url"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
)

// BuildNativeRequest validates req and converts it to an *http.Request bound
// to ctx. Every failure is an *httperr.Error of kind LocalProtocolError or
// InvalidURL.
func BuildNativeRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if req == nil {
		return nil, httperr.New(httperr.LocalProtocolError, "nil request")
	}

	if req.Method == "" || !httpguts.ValidHeaderFieldName(req.Method) {
		return nil, httperr.Newf(httperr.LocalProtocolError, "invalid HTTP method %q", req.Method)
	}

	u, err := parseURL(req.URL)
	if err != nil {
		return nil, err
	}

	header, err := BuildHeaders(req.Headers)
	if err != nil {
		return nil, err
	}

	body, err := CoerceBody(req.Content)
	if err != nil {
		return nil, err
	}

	native, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, httperr.Classify(err, httperr.PhaseSend)
	}

	if host := header.Get("Host"); host != "" {
		native.Host = host
		header.Del("Host")
	}
	native.Header = header

	return native, nil
}

func parseURL(raw string) (*neturl.URL, error) {
	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, httperr.Wrap(httperr.InvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, httperr.Newf(httperr.InvalidURL, "relative URL without a base: %q", raw)
	}
	if u.Host == "" {
		return nil, httperr.Newf(httperr.InvalidURL, "empty host: %q", raw)
	}
	return u, nil
}

// BuildHeaders converts the accepted header representations into an
// http.Header. Maps are applied in sorted key order with Set, so of two keys
// differing only in case the later one wins. Sequences of pairs are applied
// with Add and keep order and duplicates.
func BuildHeaders(h any) (http.Header, error) {
	out := make(http.Header)

	switch t := h.(type) {
	case nil:
	case map[string]string:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if err := setHeader(out, k, t[k]); err != nil {
				return nil, err
			}
		}
	case http.Header:
		if err := setMulti(out, t); err != nil {
			return nil, err
		}
	case map[string][]string:
		if err := setMulti(out, t); err != nil {
			return nil, err
		}
	case []HeaderPair:
		for _, p := range t {
			if err := addHeader(out, p.Name, p.Value); err != nil {
				return nil, err
			}
		}
	case [][2]string:
		for _, p := range t {
			if err := addHeader(out, p[0], p[1]); err != nil {
				return nil, err
			}
		}
	case [][]string:
		for i, p := range t {
			if len(p) != 2 {
				return nil, httperr.Newf(httperr.LocalProtocolError,
					"header item %d: expected a (name, value) pair, got %d elements", i, len(p))
			}
			if err := addHeader(out, p[0], p[1]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, httperr.Newf(httperr.LocalProtocolError, "unsupported headers type %T", h)
	}

	return out, nil
}

func setMulti(out http.Header, m map[string][]string) error {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := validateHeader(k, ""); err != nil {
			return err
		}
		out.Del(k)
		for _, v := range m[k] {
			if err := addHeader(out, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func setHeader(out http.Header, name, value string) error {
	if err := validateHeader(name, value); err != nil {
		return err
	}
	out.Set(name, value)
	return nil
}

func addHeader(out http.Header, name, value string) error {
	if err := validateHeader(name, value); err != nil {
		return err
	}
	out.Add(name, value)
	return nil
}

func validateHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return httperr.Newf(httperr.LocalProtocolError, "invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return httperr.Newf(httperr.LocalProtocolError, "invalid value for header %q", name)
	}
	return nil
}

// CoerceBody turns the accepted content representations into a reader.
// nil means no body. Chunk sequences are concatenated.
func CoerceBody(content any) (io.Reader, error) {
	switch t := content.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(t), nil
	case string:
		return strings.NewReader(t), nil
	case io.Reader:
		return t, nil
	case [][]byte:
		return bytes.NewReader(bytes.Join(t, nil)), nil
	case []string:
		return strings.NewReader(strings.Join(t, "")), nil
	case []any:
		var buf bytes.Buffer
		for i, item := range t {
			switch c := item.(type) {
			case []byte:
				buf.Write(c)
			case string:
				buf.WriteString(c)
			default:
				return nil, httperr.Newf(httperr.LocalProtocolError, "unsupported body chunk %d of type %T", i, item)
			}
		}
		return bytes.NewReader(buf.Bytes()), nil
	case iter.Seq[[]byte]:
		var buf bytes.Buffer
		for c := range t {
			buf.Write(c)
		}
		return bytes.NewReader(buf.Bytes()), nil
	default:
		return nil, httperr.Newf(httperr.LocalProtocolError, "unsupported body type %T", content)
	}
}
