// Package clientpool builds and memoizes the pooled HTTP clients used by the
// transports.
//
// Asynchronous transports share one process-wide client returned by Shared,
// built exactly once on first use. Synchronous transports own a client from
// NewBlocking. Both use:
//   - 30s whole-request timeout
//   - 64 idle connections per host, 90s idle TTL
//   - HTTP/2 preferred over TLS, TLS 1.2 minimum
//   - at most 10 redirects
package clientpool
