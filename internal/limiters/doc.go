// Package limiters provides counters over the TTL store.
//
// [FixedWindow] counts events per key in a window that opens on the first
// hit. It is nil-safe: methods on a nil receiver allow everything.
//
// Limiters only count. Callers decide what a breach means.
package limiters
