package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/iox"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/session"
	"github.com/justapithecus/vst/vst"
)

// SplitResult is the response for the split command.
type SplitResult struct {
	MessageID     uint64 `json:"message_id"`
	MessageLength int    `json:"message_length"`
	Chunks        int64  `json:"chunks"`
	ChunkSize     int    `json:"chunk_size"`
	Output        string `json:"output"`
}

// ChunkSizeFlag sets the chunk size including the header.
var ChunkSizeFlag = &cli.IntFlag{
	Name:  "chunk-size",
	Usage: "Chunk size in bytes, header included",
	Value: vst.DefaultChunkSize,
}

// SplitCommand returns the split command.
func SplitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split a file into a chunk stream",
		ArgsUsage: "<in|-> <out|->",
		Flags: StreamFlags(
			ChunkSizeFlag,
			&cli.Uint64Flag{
				Name:  "id",
				Usage: "Message id (default 1)",
				Value: 1,
			},
		),
		Action: splitAction,
	}
}

func splitAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("input and output paths required", exitConfigError)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for split command", exitConfigError)
	}
	inPath, outPath := c.Args().Get(0), c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	payload, err := chunkPayload(c, cfg)
	if err != nil {
		return err
	}
	id := c.Uint64("id")
	if id == 0 {
		return cli.Exit("--id must be non-zero", exitConfigError)
	}

	meta := sessionMeta(c, cfg, inPath)
	logger, err := newLogger(c, cfg, meta)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(logger.Sync)

	in, err := openInput(c, inPath)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	iox.DiscardClose(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, err := openOutput(c, outPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(meta.Name, "")
	sender := session.NewSender(vst.NewSequence(id), payload, logger, collector)
	err = sendAndClose(ctx, sender, out, id, data)
	if err != nil {
		return cli.Exit(err.Error(), exitStreamError)
	}

	// stdout carries the stream itself
	if outPath == "-" {
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(SplitResult{
		MessageID:     id,
		MessageLength: len(data),
		Chunks:        collector.Snapshot().ChunksWritten,
		ChunkSize:     payload + vst.HeaderSize,
		Output:        outPath,
	})
}

func sendAndClose(ctx context.Context, sender *session.Sender, out io.WriteCloser, id uint64, data []byte) error {
	if err := sender.SendWithID(ctx, out, id, data); err != nil {
		iox.DiscardClose(out)
		return err
	}
	return out.Close()
}
