// Package transport is the entry point for callers. AsyncTransport returns
// immediately with a Pending outcome and streams bodies incrementally;
// SyncTransport blocks and buffers. Neither owns anything that Close needs
// to release.
package transport
