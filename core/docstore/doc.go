// Package docstore connects to SurrealDB, the document store behind the
// profile replication layer.
//
// Only parameterised SurrealQL goes through the Client interface, which keeps
// the document adapter testable with the testify mock in core/docstore/mocks.
//
// Reconnecting wraps Connect so the document store can be registered while
// SurrealDB is down: it dials on first use and again after a failed ping.
//
// # Usage
//
//	client := docstore.NewReconnecting(cfg.Docstore, docstore.Connect)
//	rows, err := client.Query(ctx, "SELECT * FROM type::table($tb)", map[string]any{"tb": "users"})
package docstore
