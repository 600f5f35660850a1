// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, and an in-memory run snapshot served by the ops API.
// Each sink satisfies progress.Sink and is safe for repeated Consume calls.
package sinks
