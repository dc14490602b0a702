// Package metrics exposes scheduler and control-channel counters to Prometheus.
//
// A Collector owns its own registry so tests and several servers in one
// process never collide on the default one.
package metrics
