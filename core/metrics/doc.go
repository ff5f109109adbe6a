// Package metrics exposes Prometheus collectors for store writes, reads,
// health probes, background repair and sync jobs.
//
// Collectors are registered against an explicit registry so tests can use a
// fresh prometheus.NewRegistry(). Every method tolerates a nil receiver.
package metrics
