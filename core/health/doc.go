// Package health keeps a live availability ranking of the backing stores.
//
// A Monitor probes every adapter on a fixed interval and publishes the result
// as an immutable Snapshot swapped in atomically. Request handling only ever
// reads the current snapshot, so the probe loop is the sole writer of health
// state and readers never block on it.
//
// # Ranking
//
// Stores are ordered by availability (up first), then by consecutive probe
// failures (fewest first), then by the fixed preference relational, document,
// hierarchical. The first store of the ranking is the primary.
//
// # Usage
//
//	mon := health.NewMonitor(adapters, health.Config{Interval: 30 * time.Second}, logger, m)
//	go mon.Run(ctx)
//	primary, ok := mon.Snapshot().Primary()
package health
