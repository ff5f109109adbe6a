// Package store defines the contract every backing store implements and the
// error taxonomy shared by the replication layer.
//
// # Adapters
//
// Three adapters live in subpackages:
//   - relational: a SQL table reached through GORM
//   - document: a SurrealDB table of schemaless records
//   - hierarchical: an object tree in S3/MinIO keyed by user id
//
// Each one exposes GetProfile, PutProfile and ListFeedCandidates. Optional
// capabilities (liveness probes, id listing, batch upserts, paging) are
// discovered with type assertions against the small interfaces in this
// package.
//
// # Errors
//
// Connectivity problems are reported as *UnavailableError, which matches
// ErrStoreUnavailable under errors.Is. An absent record is not an error:
// GetProfile returns (nil, nil).
package store
