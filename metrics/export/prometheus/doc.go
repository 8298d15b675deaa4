// Package prometheus renders goSession metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [goSession.Manager] and exposes an
// [http.Handler]. Counters are named gosession_*_total; the one histogram is
// gosession_operation_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate Manager state.
package prometheus
