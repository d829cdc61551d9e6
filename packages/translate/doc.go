// Package translate converts between the transport-neutral Request and
// Response values and net/http, and dispatches a single exchange.
package translate
