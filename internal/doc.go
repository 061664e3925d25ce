// Package internal holds helpers shared by the sensorgate packages: secure
// random draws and the logger fallback.
//
// Subpackages implement the auth building blocks (codes, captcha, limiters,
// flows, audit, identity, keys) and the service config loader. None of them
// are part of the public API.
package internal
