// Package config provides configuration management for the profile store.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Defaults come from the `default` struct tags of
// every section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: operator HTTP server settings (port, API key, shutdown timeout)
//   - Database: relational store connection (mysql, postgres or sqlite)
//   - Docstore: SurrealDB document store connection
//   - Storage: S3/MinIO credentials and the bucket holding the profile tree
//   - Replication: probe interval, operation timeout, read retries and repair delays
//   - Sync: batch size and rate limit of operator sync jobs
//   - Metrics: Prometheus endpoint
//   - Log: Logging level and format
//
// Environment variables map onto nested keys by replacing dots with
// underscores, e.g. REPLICATION_REPAIR_DELAYS=5s,15s,45s.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Replication.ProbeInterval)
package config
