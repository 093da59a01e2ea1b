package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes an analysis run: which samples to load, in what order,
// and optionally a hierarchy override and a metadata file.
type Manifest struct {
	Hierarchy []string    `yaml:"hierarchy,omitempty"`
	Samples   []SampleRef `yaml:"samples"`
	Metadata  string      `yaml:"metadata,omitempty"`
}

// SampleRef points a sample identifier at its classification TSV file.
type SampleRef struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// LoadManifest reads a YAML manifest file and returns a validated Manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest YAML: %w", err)
	}

	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}

	return &m, nil
}

func validateManifest(m *Manifest) error {
	if len(m.Samples) == 0 {
		return fmt.Errorf("samples list is empty")
	}
	seen := make(map[string]bool, len(m.Samples))
	for i, s := range m.Samples {
		if s.ID == "" {
			return fmt.Errorf("samples[%d]: id is empty", i)
		}
		if s.Path == "" {
			return fmt.Errorf("samples[%d] (%q): path is empty", i, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("samples[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
