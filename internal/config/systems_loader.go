package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadSystemsFile loads and validates a monitored-systems configuration file
// using Koanf. Returns the parsed and validated SystemsFile or an error.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Schema validation failure (unsupported version, missing required
//     fields, duplicate names)
func LoadSystemsFile(filepath string) (*SystemsFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load systems config from %q: %w", filepath, err)
	}

	var config SystemsFile
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse systems config from %q: %w", filepath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("systems config validation failed for %q: %w", filepath, err)
	}

	return &config, nil
}
