// Package store defines the shared TTL key-value contract that every
// verification, challenge, and session component is built on, plus the
// Redis-backed implementation used in production.
//
// Implementations must be safe for concurrent use. Counter mutations go
// through Incr so that attempt tracking never depends on in-process locks.
package store
