// Package stream bridges response bodies to pull-based consumers.
//
// A network body is read by one background producer and handed to the
// consumer through a bounded queue of DefaultCapacity chunks, so a slow
// consumer applies backpressure instead of growing memory. Closing the
// stream is the cancellation signal: the producer stops and the connection
// is released. Buffered is the synchronous variant that reads everything up
// front.
package stream
