package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/config"
	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// loadConfig loads --config when given. A nil config means none was given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return cfg, nil
}

// configVal reads a field from cfg, returning the zero value for a nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

// Flag resolution: an explicitly set flag wins, then a non-zero config
// value, then the flag default.

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveUint(c *cli.Context, name string, cfgVal uint) uint {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Uint(name)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// sessionMeta builds the session identity from --session and the config.
func sessionMeta(c *cli.Context, cfg *config.Config, peer string) *types.SessionMeta {
	meta := &types.SessionMeta{
		Name: resolveString(c, "session", configVal(cfg, func(c *config.Config) string { return c.Session })),
	}
	if peer != "" {
		meta.Peer = &peer
	}
	return meta
}

// newLogger builds a stderr logger bound to meta at the resolved level.
func newLogger(c *cli.Context, cfg *config.Config, meta *types.SessionMeta) (*log.Logger, error) {
	name := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.LogLevel }))
	level, err := log.ParseLevel(name)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return log.NewLogger(meta).WithOutput(errWriter(c)).WithLevel(level), nil
}

// maxChunkLength resolves --max-chunk-length against the config.
func maxChunkLength(c *cli.Context, cfg *config.Config) uint32 {
	n := resolveUint(c, "max-chunk-length", uint(configVal(cfg, func(c *config.Config) uint32 { return c.MaxChunkLength })))
	if n == 0 {
		return vst.MaxChunkLength
	}
	return uint32(min(n, uint(^uint32(0))))
}

// chunkPayload resolves --chunk-size into a payload capacity.
func chunkPayload(c *cli.Context, cfg *config.Config) (int, error) {
	size := resolveInt(c, "chunk-size", configVal(cfg, func(c *config.Config) int { return c.ChunkSize }))
	if size <= vst.HeaderSize {
		return 0, cli.Exit(fmt.Sprintf("--chunk-size must exceed the %d-byte header, got %d", vst.HeaderSize, size), exitConfigError)
	}
	if uint64(size) > math.MaxUint32 {
		return 0, cli.Exit(fmt.Sprintf("--chunk-size must fit a u32 chunk length, got %d", size), exitConfigError)
	}
	return size - vst.HeaderSize, nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func outWriter(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// openInput opens path for reading; "-" is stdin.
func openInput(c *cli.Context, path string) (io.ReadCloser, error) {
	if path == "-" {
		in := c.App.Reader
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openOutput creates path for writing; "-" is stdout.
func openOutput(c *cli.Context, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{outWriter(c)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

func resolveUint64(c *cli.Context, name string, cfgVal uint64) uint64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Uint64(name)
	}
	return cfgVal
}
