package config

import (
	"fmt"
	"reflect"
	"strings"

	"service-catalog/core/database"
	"service-catalog/core/logger"
	"service-catalog/core/resilient"
	"service-catalog/core/server"
	"service-catalog/core/storage"
	"service-catalog/feature/catalog"
	"service-catalog/feature/catalog/targets"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Retry bounds reconnects and remote API retries.
	Retry resilient.Config `mapstructure:"retry"`
	// Catalog holds the source definitions location.
	Catalog catalog.Config `mapstructure:"catalog"`
	// Snapshot holds configuration for the static snapshot target.
	Snapshot targets.SnapshotConfig `mapstructure:"snapshot"`
	// Remote holds configuration for the remote production API target.
	Remote targets.RemoteConfig `mapstructure:"remote"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	// We construct the path to .env
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverMySQL, database.DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", database.DriverMySQL, database.DriverSQLite, c.Database.Driver)
	}

	switch c.Snapshot.Backend {
	case targets.BackendFile, targets.BackendStorage:
	default:
		return fmt.Errorf("snapshot.backend must be %q or %q, got %q", targets.BackendFile, targets.BackendStorage, c.Snapshot.Backend)
	}

	if c.Remote.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required when remote.enabled is set")
	}
	return nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
