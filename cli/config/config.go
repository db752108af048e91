package config

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/vst/policy"
	"github.com/justapithecus/vst/vst"
)

// Config represents a vst.yaml (or vst.toml) configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Session          string         `yaml:"session" toml:"session"`
	LogLevel         string         `yaml:"log_level" toml:"log_level"`
	ChunkSize        int            `yaml:"chunk_size" toml:"chunk_size"`
	MaxChunkLength   uint32         `yaml:"max_chunk_length" toml:"max_chunk_length"`
	MaxMessageLength uint64         `yaml:"max_message_length" toml:"max_message_length"`
	SweepInterval    int            `yaml:"sweep_interval" toml:"sweep_interval"`
	Eviction         EvictionConfig `yaml:"eviction" toml:"eviction"`
	Request          RequestConfig  `yaml:"request" toml:"request"`
	Journal          JournalConfig  `yaml:"journal" toml:"journal"`
	Adapter          AdapterConfig  `yaml:"adapter" toml:"adapter"`
}

// EvictionConfig bounds the reassembly table.
type EvictionConfig struct {
	MaxAge          Duration `yaml:"max_age" toml:"max_age"`
	MaxPending      int      `yaml:"max_pending" toml:"max_pending"`
	MaxPendingBytes uint64   `yaml:"max_pending_bytes" toml:"max_pending_bytes"`
}

// RequestConfig holds request envelope defaults.
type RequestConfig struct {
	Version  uint32 `yaml:"version" toml:"version"`
	Database string `yaml:"database" toml:"database"`
	Path     string `yaml:"path" toml:"path"`
}

// JournalConfig holds journal storage defaults.
type JournalConfig struct {
	Backend     string `yaml:"backend" toml:"backend"`
	Path        string `yaml:"path" toml:"path"`
	Dataset     string `yaml:"dataset" toml:"dataset"`
	Region      string `yaml:"region" toml:"region"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style" toml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type" toml:"type"`
	URL     string            `yaml:"url" toml:"url"`
	Channel string            `yaml:"channel,omitempty" toml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty" toml:"retries,omitempty"`
}

// Duration wraps time.Duration for string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string like "10s" or "5m30s".
// Used directly by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// UnmarshalYAML parses a scalar duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// EvictionPolicy converts the eviction section into a policy.
func (c *Config) EvictionPolicy() policy.Eviction {
	return policy.Eviction{
		MaxAge:          c.Eviction.MaxAge.Duration,
		MaxPending:      c.Eviction.MaxPending,
		MaxPendingBytes: c.Eviction.MaxPendingBytes,
	}
}

// Validate checks values a decoder cannot reject on its own.
func (c *Config) Validate() error {
	if c.ChunkSize != 0 && c.ChunkSize <= vst.HeaderSize {
		return fmt.Errorf("chunk_size must exceed the %d-byte header, got %d", vst.HeaderSize, c.ChunkSize)
	}
	if uint64(c.ChunkSize) > math.MaxUint32 {
		return fmt.Errorf("chunk_size must fit a u32 chunk length, got %d", c.ChunkSize)
	}
	if c.MaxChunkLength != 0 && c.MaxChunkLength <= vst.HeaderSize {
		return fmt.Errorf("max_chunk_length must exceed the %d-byte header, got %d", vst.HeaderSize, c.MaxChunkLength)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must be >= 0, got %d", c.SweepInterval)
	}
	if c.Eviction.MaxPending < 0 {
		return fmt.Errorf("eviction.max_pending must be >= 0, got %d", c.Eviction.MaxPending)
	}
	if c.Eviction.MaxAge.Duration < 0 {
		return fmt.Errorf("eviction.max_age must be >= 0, got %s", c.Eviction.MaxAge)
	}
	switch c.Journal.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("journal.backend must be fs or s3, got %q", c.Journal.Backend)
	}
	switch c.Adapter.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("adapter.type must be redis or webhook, got %q", c.Adapter.Type)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}
