// Package monitoring provides Prometheus instrumentation for the service.
//
// Metrics cover the HTTP surface, WebSocket transport, live/pending browser
// sessions, the screencast frame pipeline, the network response cache, and
// clone operations. All collectors are registered via promauto at startup.
package monitoring
