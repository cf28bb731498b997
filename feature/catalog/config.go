package catalog

// Config holds configuration for the catalog feature.
type Config struct {
	// DefinitionsPath is the YAML file with the source-of-truth definitions.
	DefinitionsPath string `mapstructure:"definitions_path" default:"data/services.yaml"`
}
