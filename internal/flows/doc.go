// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function takes a dependency struct of funcs and sentinel errors
// and performs no I/O of its own. The Engine builds the structs once from
// its stores and delegates, which keeps the Engine thin and lets every flow
// be tested with plain fakes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sensorgate (to avoid import cycles).
//   - Decide HTTP status codes or response shapes.
package flows
