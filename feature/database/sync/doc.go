// Package sync runs operator-triggered reconciliation jobs over the
// replicated profile store.
//
// The relational store is the source of truth for every job here. Jobs are
// independent of the live request path: they read the relational copy and
// rewrite it into the other stores through replication.Store.WriteToStore,
// so they share timeouts and metrics with ordinary writes.
//
// # Jobs
//
//   - SyncUserToAllStores rewrites one profile into every other store and
//     cancels pending repairs the rewrite made redundant.
//   - SyncAllUsers runs the above for every relational user id, throttled by
//     a token bucket, and counts failures instead of stopping on them.
//   - SyncTableToStore pages through the relational table and batch-upserts
//     each page into one target store (backfill).
//   - SyncRelationalToDocument and SyncDocumentToRelational copy a single
//     profile in one direction.
//   - Reconcile builds a drift plan with core/reconcile and optionally
//     applies it.
//
// # Sync log
//
// Every job appends an immutable LogEntry to the relational sync log table
// and, best effort, to the document store. Logging never fails a job.
package sync
