package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/config"
	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/iox"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/session"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// RequestCommand returns the request command with subcommands.
func RequestCommand() *cli.Command {
	return &cli.Command{
		Name:  "request",
		Usage: "Encode or decode request envelopes",
		Subcommands: []*cli.Command{
			requestEncodeCommand(),
			requestDecodeCommand(),
		},
	}
}

func requestEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Write a request envelope as a chunk stream",
		ArgsUsage: "<out|->",
		Flags: StreamFlags(
			ChunkSizeFlag,
			&cli.Uint64Flag{
				Name:  "id",
				Usage: "Message id",
				Value: 1,
			},
			&cli.UintFlag{
				Name:  "envelope-version",
				Usage: "Envelope version",
				Value: types.DefaultRequestVersion,
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "Target database",
				Value: types.DefaultDatabase,
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Request path",
				Value: types.DefaultRequestPath,
			},
			&cli.StringFlag{
				Name:  "method",
				Usage: "Request type: DELETE, GET, POST, PUT, PATCH",
				Value: "GET",
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "Query parameter as key=value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "meta",
				Usage: "Header as key=value (repeatable)",
			},
		),
		Action: requestEncodeAction,
	}
}

// EncodeResult is the response for request encode.
type EncodeResult struct {
	MessageID     uint64 `json:"message_id"`
	MessageLength int    `json:"message_length"`
	Chunks        int64  `json:"chunks"`
	Output        string `json:"output"`
}

func requestEncodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("output path required", exitConfigError)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for request encode command", exitConfigError)
	}
	outPath := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	req, err := buildRequest(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	payload, err := chunkPayload(c, cfg)
	if err != nil {
		return err
	}
	id := c.Uint64("id")
	if id == 0 {
		return cli.Exit("--id must be non-zero", exitConfigError)
	}

	meta := sessionMeta(c, cfg, outPath)
	logger, err := newLogger(c, cfg, meta)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(logger.Sync)

	out, err := openOutput(c, outPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(meta.Name, "")
	sender := session.NewSender(vst.NewSequence(id), payload, logger, collector)
	if _, err := sender.SendRequest(ctx, out, req); err != nil {
		iox.DiscardClose(out)
		return cli.Exit(err.Error(), exitStreamError)
	}
	if err := out.Close(); err != nil {
		return cli.Exit(err.Error(), exitStreamError)
	}

	if outPath == "-" {
		return nil
	}
	encoded, err := req.Encode()
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(EncodeResult{
		MessageID:     id,
		MessageLength: len(encoded),
		Chunks:        collector.Snapshot().ChunksWritten,
		Output:        outPath,
	})
}

// buildRequest merges flags over the config request section.
func buildRequest(c *cli.Context, cfg *config.Config) (*types.RequestEnvelope, error) {
	rc := configVal(cfg, func(c *config.Config) config.RequestConfig { return c.Request })

	req := types.NewRequestEnvelope()
	req.Version = uint32(resolveUint(c, "envelope-version", uint(rc.Version)))
	req.Database = resolveString(c, "database", rc.Database)
	req.RequestPath = resolveString(c, "path", rc.Path)

	method, err := types.ParseRequestType(c.String("method"))
	if err != nil {
		return nil, err
	}
	req.RequestType = method

	if req.Parameters, err = parsePairs("--param", c.StringSlice("param")); err != nil {
		return nil, err
	}
	if req.Meta, err = parsePairs("--meta", c.StringSlice("meta")); err != nil {
		return nil, err
	}
	return req, nil
}

// parsePairs parses key=value strings. Later keys win.
func parsePairs(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%s %q must be key=value", flag, p)
		}
		out[k] = v
	}
	return out, nil
}

func requestDecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Reassemble a chunk stream and decode each message as a request envelope",
		ArgsUsage: "<stream|->",
		Flags:     StreamFlags(MaxChunkLengthFlag),
		Action:    requestDecodeAction,
	}
}

func requestDecodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("stream path required", exitConfigError)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for request decode command", exitConfigError)
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
	meta := sessionMeta(c, cfg, path)
	logger, err := newLogger(c, cfg, meta)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(logger.Sync)

	in, err := openInput(c, path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	decoded := []reader.DecodedRequest{}
	sess, err := session.New(session.Config{
		Meta: meta,
		Handler: func(_ context.Context, msg *vst.Message) error {
			d, err := reader.DecodeRequest(msg)
			if err != nil {
				return err
			}
			decoded = append(decoded, *d)
			return nil
		},
		Logger:         logger,
		Collector:      metrics.NewCollector(meta.Name, ""),
		MaxChunkLength: maxChunkLength(c, cfg),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := sess.Serve(ctx, in)
	sugar := logger.Sugar()
	for _, e := range sess.Close() {
		sugar.Warnf("message %d incomplete at end of stream: %d/%d chunks", e.MessageID, e.Received, e.TotalChunks)
	}
	if err := r.Render(decoded); err != nil {
		return err
	}
	if serveErr != nil {
		return cli.Exit(serveErr.Error(), exitStreamError)
	}
	return nil
}
