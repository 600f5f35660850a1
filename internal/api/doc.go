// Package api hosts the ops HTTP server that runs alongside a harvest.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status and /v1/status/{run_id} for run progress from the
//     snapshot sink.
package api
