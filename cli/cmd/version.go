package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version  string `json:"version"`
	Contract string `json:"contract"`
	Commit   string `json:"commit"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitConfigError)
		}

		return r.Render(VersionResponse{
			Version:  types.Version,
			Contract: types.ContractVersion,
			Commit:   commit,
		})
	}
}
