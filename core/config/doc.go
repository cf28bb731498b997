// Package config provides configuration management for the service catalog.
//
// It uses Viper to read environment variables (with an optional .env file
// loaded by godotenv). Defaults come from the `default` struct tags of each
// section, and nested keys map to upper-case variables: database.host is read
// from DATABASE_HOST.
//
// # Configuration Structure
//
//   - Server: HTTP port, API key and body limit
//   - Database: driver (mysql or sqlite) and connection details
//   - Storage: S3/MinIO credentials and bucket for the snapshot object backend
//   - Log: logging level and format
//   - Retry: reconnect attempts and fixed backoff
//   - Catalog: path of the YAML definitions
//   - Snapshot: file or storage backend for the static snapshot
//   - Remote: production API credentials and timeout
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
