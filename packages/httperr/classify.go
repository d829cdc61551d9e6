package httperr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"golang.org/x/net/http2"
)

// ErrTooManyRedirects is returned by the client's redirect policy once the
// configured redirect limit is reached.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// Phase tells the classifier where in the exchange a failure happened.
type Phase int

const (
	// PhaseSend covers dispatching a request once a connection is held
	PhaseSend Phase = iota
	// PhaseConnect covers dialing, TLS and waiting for a pooled connection
	PhaseConnect
	// PhaseWrite covers writing the request head and body
	PhaseWrite
	// PhaseRead covers reading the response body
	PhaseRead
)

// Classify maps err onto exactly one kind. An *Error anywhere in the chain is
// returned unchanged. The checks run in priority order:
//
//  1. timeout during the connect phase -> ConnectTimeout
//  2. timeout while reading the body -> ReadTimeout
//  3. any other timeout -> RequestTimeout
//  4. TLS handshake or certificate failure -> SSLError
//  5. proxy CONNECT failure -> ProxyError
//  6. connect-phase failure -> ConnectError
//  7. redirect limit -> TooManyRedirects
//  8. malformed local request -> LocalProtocolError or InvalidURL
//  9. malformed server response -> RemoteProtocolError
//  10. body read/write failure -> ReadError / WriteError
//  11. anything else -> Other
func Classify(err error, phase Phase) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	timeout := isTimeout(err)
	connect := isDial(err) || (phase == PhaseConnect && (timeout || isNetFailure(err)))

	switch {
	case timeout && connect:
		return Wrap(ConnectTimeout, err)
	case timeout && phase == PhaseRead:
		return Wrap(ReadTimeout, err)
	case timeout:
		return Wrap(RequestTimeout, err)
	case errors.Is(err, context.Canceled):
		return Wrap(Other, err)
	case isTLS(err):
		return Wrap(SSLError, err)
	case isProxy(err):
		return Wrap(ProxyError, err)
	case connect:
		return Wrap(ConnectError, err)
	case errors.Is(err, ErrTooManyRedirects):
		return Wrap(TooManyRedirects, err)
	}

	if kind, ok := localKind(err); ok {
		return Wrap(kind, err)
	}

	switch {
	case isRemoteProtocol(err):
		return Wrap(RemoteProtocolError, err)
	case phase == PhaseRead:
		return Wrap(ReadError, err)
	case phase == PhaseWrite:
		return Wrap(WriteError, err)
	}

	return Wrap(Other, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	// url.Error only inspects its direct child, so walk the whole chain.
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
	}
	return false
}

func isDial(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return true
	}
	var dns *net.DNSError
	return errors.As(err, &dns)
}

func isNetFailure(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH)
}

func isProxy(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "proxyconnect" {
		return true
	}
	return strings.Contains(err.Error(), "proxyconnect")
}

func isTLS(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		alertErr    tls.AlertError
		authorityEr x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityEr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		strings.Contains(err.Error(), "tls: ")
}

var localPrefixes = []string{
	"net/http: invalid header",
	"net/http: invalid method",
	"net/http: nil Request",
	"net/http: Request.ContentLength",
	"net/http: can't write control character",
	"http: ContentLength=",
}

var invalidURLMarkers = []string{
	"unsupported protocol scheme",
	"no Host in request URL",
	"invalid URL escape",
	"missing protocol scheme",
}

func localKind(err error) (Kind, bool) {
	msg := err.Error()
	for _, m := range invalidURLMarkers {
		if strings.Contains(msg, m) {
			return InvalidURL, true
		}
	}
	for _, p := range localPrefixes {
		if strings.Contains(msg, p) {
			return LocalProtocolError, true
		}
	}
	return Other, false
}

var remoteMarkers = []string{
	"malformed HTTP",
	"malformed chunked encoding",
	"invalid byte in chunk length",
	"server sent GOAWAY",
	"unexpected EOF reading trailer",
	"http2: server sent",
	"http: server gave HTTP response to HTTPS client",
	"net/http: HTTP/1.x transport connection broken",
}

func isRemoteProtocol(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var (
		streamErr http2.StreamError
		goAwayErr http2.GoAwayError
		connErr   http2.ConnectionError
	)
	if errors.As(err, &streamErr) || errors.As(err, &goAwayErr) || errors.As(err, &connErr) {
		return true
	}
	msg := err.Error()
	for _, m := range remoteMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
