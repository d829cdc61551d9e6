// Package httperr defines the closed set of transport failure kinds and the
// classifier that maps net/http, net and TLS errors onto them.
//
// Every error produced by the bridge is an *Error, so callers can branch on
// the kind instead of matching message text:
//
//	if httperr.Is(err, httperr.ConnectTimeout) {
//	    // retry against another host
//	}
package httperr
