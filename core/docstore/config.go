package docstore

// Config holds configuration for the SurrealDB document store.
type Config struct {
	// URL is the websocket RPC endpoint.
	URL string `mapstructure:"url" default:"ws://localhost:8000/rpc"`
	// Namespace is the SurrealDB namespace.
	Namespace string `mapstructure:"namespace" default:"profiles"`
	// Database is the SurrealDB database.
	Database string `mapstructure:"database" default:"profiles"`
	// Username is the root or namespace user; empty skips sign-in.
	Username string `mapstructure:"username" default:"root"`
	// Password for Username.
	Password string `mapstructure:"password" default:"root"`
	// Table holds profile records.
	Table string `mapstructure:"table" default:"users"`
	// SyncLogTable receives sync log entries.
	SyncLogTable string `mapstructure:"sync_log_table" default:"sync_logs"`
	// TimeoutSeconds bounds the connect and sign-in handshake.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
}
