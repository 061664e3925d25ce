// Package httpapi exposes the auth engine and the telemetry feed over HTTP.
//
// Every JSON reply uses the response envelope. Routes outside the gate
// allow-list require a session cookie or header.
package httpapi
