// Package database exposes the operator surface of the replicated profile
// store.
//
// It reports store health, drives the sync jobs of the sync subpackage and
// reports relational schema drift. Profile reads and writes are not exposed
// here; callers use replication.Store directly.
//
// # HTTP Endpoints
//
//   - GET  /database/health : Current health snapshot and primary store.
//   - GET  /database/schema : Relational columns missing from the profile table.
//   - GET  /database/repairs : Pending background repairs per user.
//   - GET  /database/sync-logs : Latest sync log entries (supports ?user_id= and ?limit=).
//   - GET  /database/reconcile : Drift plan (supports ?sync=true and ?apply=true).
//   - POST /database/sync-all : Syncs every relational user to the other stores.
//   - POST /database/sync-user/:userId : Syncs one user (404 when unknown).
//   - POST /database/sync-table/:store : Backfills one store from the relational table.
//   - POST /database/failover-test : Reads a few probe users through the failover path.
package database
