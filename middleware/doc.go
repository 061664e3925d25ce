// Package middleware holds the HTTP request gate that guards every
// non-public route with a session check.
//
// # Gate
//
// [Gate] lets allow-listed paths and OPTIONS requests through. For everything
// else it reads the session id from the session cookie, falling back to a
// header of the same name, calls Engine.Validate and attaches the profile to
// the request context. Failures get a 401 with the not-authenticated
// envelope.
//
// # What this package must NOT do
//
//   - Access the TTL store directly (the Engine handles I/O).
//   - Make decisions beyond pass or reject.
package middleware
