// Package devicetoken issues and verifies the HS256 bearer tokens that sensor
// devices present when publishing telemetry over HTTP.
package devicetoken
