package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a config file, expands environment variables, and decodes it.
// Files ending in .toml are TOML; everything else is YAML. Unknown keys are
// rejected in both formats.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))
	if strings.TrimSpace(expanded) == "" {
		return &Config{}, nil
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = decodeTOML(expanded)
		if err != nil {
			return nil, fmt.Errorf("invalid TOML in %s: %w", path, err)
		}
	} else {
		cfg, err = decodeYAML(expanded)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(s string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(s)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		// io.EOF means an empty or comments-only document.
		return nil, err
	}
	return &cfg, nil
}

func decodeTOML(s string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(s, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}
