package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a JSON or YAML file over DefaultConfig and validates the result.
// The format is chosen by extension (.json, .yaml, .yml).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		return nil, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}

	cfg, err := Parse(raw, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw bytes in the given format ("json" or "yaml") over
// DefaultConfig. Unknown fields are rejected.
func Parse(raw []byte, format string) (*Config, error) {
	cfg := DefaultConfig()

	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
