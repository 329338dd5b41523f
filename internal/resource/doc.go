// Package resource bounds the background work of a client.
//
// A Controller limits concurrent compactions and flushes with a weighted
// semaphore, throttles snapshot writes with a token bucket, and tracks the
// memory held by encoded snapshot buffers.
package resource
