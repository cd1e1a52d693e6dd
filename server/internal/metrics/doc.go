// Package metrics exposes bumpwatch-server's own Prometheus metrics.
//
// Every method is safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics
