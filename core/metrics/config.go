package metrics

// Config holds the Prometheus exposition settings.
type Config struct {
	// Enabled mounts the exposition endpoint.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Path is where the endpoint is mounted.
	Path string `mapstructure:"path" default:"/metrics"`
}
