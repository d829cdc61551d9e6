package httperr

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed transport error taxonomy.
type Kind int

const (
	// Other is any failure that no more specific kind describes
	Other Kind = iota
	RequestTimeout
	ConnectTimeout
	ReadTimeout
	ConnectError
	ReadError
	WriteError
	// PoolTimeout is part of the taxonomy but never produced: net/http has no
	// deadline for acquiring an idle connection separate from the request's.
	PoolTimeout
	SSLError
	ProxyError
	LocalProtocolError
	RemoteProtocolError
	InvalidURL
	TooManyRedirects
)

var kindNames = [...]string{
	Other:               "Other",
	RequestTimeout:      "RequestTimeout",
	ConnectTimeout:      "ConnectTimeout",
	ReadTimeout:         "ReadTimeout",
	ConnectError:        "ConnectError",
	ReadError:           "ReadError",
	WriteError:          "WriteError",
	PoolTimeout:         "PoolTimeout",
	SSLError:            "SSLError",
	ProxyError:          "ProxyError",
	LocalProtocolError:  "LocalProtocolError",
	RemoteProtocolError: "RemoteProtocolError",
	InvalidURL:          "InvalidURL",
	TooManyRedirects:    "TooManyRedirects",
}

var kindTitles = [...]string{
	Other:               "Other error",
	RequestTimeout:      "Request timeout",
	ConnectTimeout:      "Connect timeout",
	ReadTimeout:         "Read timeout",
	ConnectError:        "Connection error",
	ReadError:           "Read error",
	WriteError:          "Write error",
	PoolTimeout:         "Pool timeout",
	SSLError:            "SSL error",
	ProxyError:          "Proxy error",
	LocalProtocolError:  "Local protocol error",
	RemoteProtocolError: "Remote protocol error",
	InvalidURL:          "Invalid URL",
	TooManyRedirects:    "Too many redirects",
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

// String returns the stable identifier of the kind, e.g. "ConnectTimeout".
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) title() string {
	if k < 0 || int(k) >= len(kindTitles) {
		return k.String()
	}
	return kindTitles[k]
}

// IsTimeout reports whether the kind is one of the timeout kinds.
func (k Kind) IsTimeout() bool {
	switch k {
	case RequestTimeout, ConnectTimeout, ReadTimeout, PoolTimeout:
		return true
	}
	return false
}

// IsConnect reports whether the kind belongs to the connection phase,
// before any request byte reached the server.
func (k Kind) IsConnect() bool {
	switch k {
	case ConnectTimeout, ConnectError, SSLError, ProxyError:
		return true
	}
	return false
}

// IsNetwork reports whether the kind describes a failure that happened on
// the wire rather than while building the request.
func (k Kind) IsNetwork() bool {
	switch k {
	case LocalProtocolError, InvalidURL, Other:
		return false
	}
	return true
}

// Error is the single error type surfaced by the bridge. Values are never
// mutated after construction.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == TooManyRedirects || e.Detail == "" {
		return e.Kind.title()
	}
	return e.Kind.title() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and detail.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates an Error with a formatted detail. A %w verb in format is
// kept as the wrapped cause.
func Newf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Detail: err.Error(), Err: errors.Unwrap(err)}
}

// Wrap creates an Error of the given kind whose detail is err's message.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Other, false
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
