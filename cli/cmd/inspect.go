package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/cli/tui"
	"github.com/justapithecus/vst/iox"
)

// InspectCommand returns the inspect command.
// Inspect lists chunk headers without reassembling anything.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the chunk headers of a stream",
		ArgsUsage: "<stream|->",
		Flags:     append(ReadOnlyFlags(), ConfigFlag, MaxChunkLengthFlag),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("stream path required", exitConfigError)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	in, err := openInput(c, path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	resp, err := reader.InspectStream(in, path, maxChunkLength(c, cfg))
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		err = r.RenderTUI(tui.ViewInspectStream, resp)
	} else {
		err = r.Render(resp)
	}
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return cli.Exit("", exitStreamError)
	}
	return nil
}
