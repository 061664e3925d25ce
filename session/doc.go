// Package session persists authenticated sessions in the shared TTL store.
//
// # Layout
//
// A session lives under user:session:{userId}:{sessionId} holding the JSON
// profile snapshot. The reverse index session:map:{sessionId} holds the
// userId so a request can be resolved with two point reads. Both keys carry
// the same TTL and slide together.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Profile] snapshot. It does NOT check
// credentials or challenges; those belong to the Engine flows.
//
// # What this package must NOT do
//
//   - Import sensorgate (no upward imports).
//   - Store password hashes in a [Profile].
//   - Recreate a key that already expired while sliding.
package session
