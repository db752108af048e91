// Package cmd provides CLI commands for the vst binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes.
const (
	exitSuccess     = 0
	exitStreamError = 1
	exitConfigError = 2
)

// Shared flags for commands that render output.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and assemble.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, assemble only)",
	}
)

// Shared flags for commands that read or write chunk streams.
var (
	// ConfigFlag points at a vst.yaml or vst.toml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a vst.yaml or vst.toml config file",
	}

	// LogLevelFlag sets the minimum log level written to stderr.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
		Value: "info",
	}

	// SessionFlag labels log lines, metrics and journal partitions.
	SessionFlag = &cli.StringFlag{
		Name:  "session",
		Usage: "Session label",
		Value: "vst",
	}

	// MaxChunkLengthFlag bounds the chunk length accepted from a stream.
	MaxChunkLengthFlag = &cli.UintFlag{
		Name:  "max-chunk-length",
		Usage: "Largest accepted chunk length in bytes, header included",
	}
)

// ReadOnlyFlags returns the output flags shared by every command.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// StreamFlags returns the output flags plus config, logging and session flags.
func StreamFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(ReadOnlyFlags(), ConfigFlag, LogLevelFlag, SessionFlag)
	return append(flags, extra...)
}

// Commands returns every vst command.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		SplitCommand(),
		AssembleCommand(),
		InspectCommand(),
		RequestCommand(),
		JournalCommand(),
		VersionCommand(commit),
	}
}
