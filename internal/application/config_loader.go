package application

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadRunConfig reads, defaults and validates a YAML run configuration.
// LoadRunConfig returns an error if the file cannot be read, contains
// unknown keys, or fails validation.
func LoadRunConfig(path string) (*RunConfig, error) {
	// Clean the path to prevent directory traversal attacks.
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseRunConfig(bytes.NewReader(data))
}

// ParseRunConfig decodes a YAML run configuration from r, applies defaults
// and validates the result.
func ParseRunConfig(r io.Reader) (*RunConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg RunConfig
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
