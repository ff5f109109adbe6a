// Package relational implements the relational profile store on top of GORM.
//
// Profiles live in one table keyed by a unique user_id column. Writes are
// idempotent upserts (ON CONFLICT / ON DUPLICATE KEY) that never touch
// created_at once a row exists. Only columns from the profile field table are
// written; anything else in a record is dropped silently.
//
// # Schema Drift
//
// When the live table is missing one of the known columns the driver rejects
// the write. The adapter then retries once with the core projection
// (user_id, name, email, city, is_active, updated_at) and reports the result
// with store.ErrSchemaDriftDegraded so the caller can log the partial write.
package relational
