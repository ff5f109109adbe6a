// Package storage provides an abstraction layer over S3-compatible object
// storage.
//
// It wraps the MinIO Go client behind a small Client interface so the
// hierarchical profile store can be exercised with the testify mock in
// core/storage/mocks. Both AWS S3 and self-hosted MinIO are supported.
//
// # Operations
//
//   - BucketExists / MakeBucket: liveness probe and bootstrap (EnsureBucket)
//   - PutObject / GetObject: profile documents
//   - ListObjects: walking the profile tree for feeds and id listings
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
