// Package telemetry ingests live sensor readings and fans them out to viewers.
//
// Readings arrive on named topics, either from the Redis pub/sub [Feed] or
// directly through [Router.Handle]. The router hands each payload to the
// [Processor] registered for its topic, caches the decoded reading in
// [Latest], and broadcasts it through the websocket [Hub]. Payloads that fail
// to decode are logged and dropped.
package telemetry
