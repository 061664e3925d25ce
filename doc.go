// Package sensorgate provides verification-gated session authentication for
// the sensor monitoring backend: emailed and texted verification codes,
// image challenges, registration, and server-side sessions with a sliding
// lifetime and one live session per account.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. All shared state lives in the TTL
// store; the Engine itself is stateless apart from its audit goroutine.
//
// # Architecture boundaries
//
// sensorgate is the public surface. It exposes [Engine], [Builder], [Config],
// the typed [Error] and value types. Flow orchestration, key layout, code and
// challenge bookkeeping and audit dispatch live under internal/ and are
// never exported. Transport concerns (cookies, envelopes, routing) live in
// the httpapi and middleware packages.
//
// # What this package must NOT do
//
//   - Expose store keys or encoding details in its public API.
//   - Retry store operations or poll in the background.
//   - Import any sub-package that re-imports sensorgate.
//
// # Store round trips
//
// Validate costs four round trips: two point reads and two TTL slides. Login
// is allowed one round trip per step and a pattern scan to revoke earlier
// sessions.
package sensorgate
