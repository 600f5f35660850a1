// Package progress provides the event primitives, non-blocking hub, and run
// reporter that harvest components use to audit what they stored, dropped, and
// exhausted. The hub batches events on a background goroutine and fans them out
// to pluggable sinks such as structured logs, Prometheus, or the status snapshot.
package progress
