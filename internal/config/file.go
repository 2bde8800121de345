package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the optional `melbi.yaml` configuration read by the CLI.
type File struct {
	// MaxParseDepth overrides the parser nesting limit (0 = default).
	MaxParseDepth int `yaml:"max_parse_depth"`

	// MaxRecursionDepth overrides the evaluation recursion limit (0 = default).
	MaxRecursionDepth int `yaml:"max_recursion_depth"`

	// MaxInstructions caps executed instructions per run (0 = unlimited).
	MaxInstructions int64 `yaml:"max_instructions"`

	// Color controls diagnostic coloring: "auto", "always", or "never".
	Color string `yaml:"color"`
}

// DefaultFileName is looked up in the working directory when --config is
// not given.
const DefaultFileName = "melbi.yaml"

// Load reads a configuration file. A missing file at the default path is
// not an error; a missing file at an explicit path is.
func Load(path string, explicit bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return &File{Color: "auto"}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if f.Color == "" {
		f.Color = "auto"
	}
	switch f.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("config %s: color must be auto, always, or never", path)
	}
	return &f, nil
}
