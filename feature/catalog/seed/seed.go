package seed

import (
	"bytes"
	"errors"
	"fmt"

	"service-catalog/feature/catalog/models"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrNoDefinitions is returned for a file without any service entries.
var ErrNoDefinitions = errors.New("no service definitions found")

type file struct {
	Services []map[string]any `yaml:"services"`
}

// Load reads the source definitions from path on fs.
func Load(fs afero.Fs, path string) ([]models.RawRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions %s: %w", path, err)
	}
	records, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Parse decodes definitions from YAML. The document is either a list of
// services or a mapping with a "services" list. Entries may use the flat,
// nested or mixed shape.
func Parse(data []byte) ([]models.RawRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoDefinitions
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, ErrNoDefinitions
	}

	var entries []map[string]any
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, fmt.Errorf("invalid definitions: %w", err)
		}
	case yaml.MappingNode:
		var f file
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("invalid definitions: %w", err)
		}
		entries = f.Services
	default:
		return nil, fmt.Errorf("invalid definitions: expected a list or a services mapping")
	}

	if len(entries) == 0 {
		return nil, ErrNoDefinitions
	}

	records := make([]models.RawRecord, 0, len(entries))
	for i, entry := range entries {
		rec, err := models.DecodeRaw(entry)
		if err != nil {
			return nil, fmt.Errorf("service %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
