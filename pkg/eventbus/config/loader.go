package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a configuration file encoding.
type Format string

// Supported encodings.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf returns the encoding implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// Parse decodes data in format f. ${NAME} and $NAME references are replaced
// with environment values before decoding; unset variables become empty.
func Parse(data []byte, f Format) (Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var m map[string]any
	switch f {
	case YAML:
		if err := yaml.Unmarshal(expanded, &m); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case JSON:
		if err := json.Unmarshal(expanded, &m); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", f)
	}
	return New(m), nil
}

// FromFile reads and parses path, choosing the format by extension.
func FromFile(path string) (Config, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, f)
}

// LoadSection reads path and returns its top-level section name. A file
// without that key is returned whole, so a file dedicated to one component
// may leave the wrapper out.
func LoadSection(path, name string) (Config, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Config{}, err
	}
	if cfg.Has(name) {
		return cfg.Sub(name), nil
	}
	return cfg, nil
}
