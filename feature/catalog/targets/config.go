package targets

// Snapshot backends.
const (
	BackendFile    = "file"
	BackendStorage = "storage"
)

// SnapshotConfig holds configuration for the static snapshot target.
type SnapshotConfig struct {
	// Backend selects where the snapshot lives: "file" or "storage".
	Backend string `mapstructure:"backend" default:"file"`
	// Path is the snapshot file for the file backend.
	Path string `mapstructure:"path" default:"public/data/services.json"`
	// Object is the object name for the storage backend.
	Object string `mapstructure:"object" default:"data/services.json"`
}

// RemoteConfig holds configuration for the remote production API target.
type RemoteConfig struct {
	// Enabled turns the remote target on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// BaseURL is the production instance, e.g. https://example.com.
	BaseURL string `mapstructure:"base_url" default:""`
	// Email and Password authenticate against /api/auth/login.
	Email    string `mapstructure:"email" default:""`
	Password string `mapstructure:"password" default:""`
	// TimeoutSeconds bounds every HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
}
