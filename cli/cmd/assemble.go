package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/adapter"
	"github.com/justapithecus/vst/adapter/redis"
	"github.com/justapithecus/vst/adapter/webhook"
	"github.com/justapithecus/vst/cli/config"
	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/cli/tui"
	"github.com/justapithecus/vst/iox"
	"github.com/justapithecus/vst/journal"
	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/policy"
	"github.com/justapithecus/vst/session"
	"github.com/justapithecus/vst/vst"
)

// AssembleCommand returns the assemble command.
// Every input stream feeds one shared reassembly table.
func AssembleCommand() *cli.Command {
	return &cli.Command{
		Name:      "assemble",
		Usage:     "Reassemble messages from one or more chunk streams",
		ArgsUsage: "<stream|->...",
		Flags: StreamFlags(append(journalFlags(),
			MaxChunkLengthFlag,
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory for assembled <id>.bin files",
				Value: ".",
			},
			&cli.Uint64Flag{
				Name:  "max-message-length",
				Usage: "Largest accepted declared message length (0 = unbounded)",
			},
			&cli.IntFlag{
				Name:  "sweep-interval",
				Usage: "Chunks between eviction sweeps",
				Value: session.DefaultSweepInterval,
			},
			// Eviction flags
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Evict incomplete messages idle longer than this (0 = never)",
			},
			&cli.IntFlag{
				Name:  "max-pending",
				Usage: "Most incomplete messages kept (0 = unbounded)",
			},
			&cli.Uint64Flag{
				Name:  "max-pending-bytes",
				Usage: "Most buffered bytes across incomplete messages (0 = unbounded)",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Message event adapter: redis or webhook",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Adapter endpoint URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis channel ({session} is replaced by the session name)",
				Value: redis.DefaultChannel,
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-publish timeout",
				Value: 5 * time.Second,
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Publish retry attempts",
				Value: 3,
			},
		)...),
		Action: assembleAction,
	}
}

func assembleAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one stream required", exitConfigError)
	}
	paths := c.Args().Slice()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	peer := ""
	if len(paths) == 1 {
		peer = paths[0]
	}
	meta := sessionMeta(c, cfg, peer)
	logger, err := newLogger(c, cfg, meta)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(logger.Sync)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outDir := c.String("out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return cli.Exit(fmt.Sprintf("cannot create output directory: %v", err), exitConfigError)
	}

	client, backend, err := buildJournal(ctx, c, cfg, meta.Name)
	if err != nil {
		return cli.Exit(fmt.Sprintf("journal: %v", err), exitConfigError)
	}
	collector := metrics.NewCollector(meta.Name, backend)

	pub, err := buildAdapter(c, cfg)
	if err != nil {
		if client != nil {
			iox.DiscardClose(client)
		}
		return cli.Exit(fmt.Sprintf("adapter: %v", err), exitConfigError)
	}

	summary := &reader.AssemblySummary{
		Session:  meta.Name,
		Streams:  len(paths),
		Messages: []reader.AssembledMessage{},
	}
	handlers := []session.Handler{writeMessageFile(outDir, summary)}
	var closers []io.Closer
	if client != nil {
		sink := journal.NewSink(client, meta.Name, collector)
		handlers = append(handlers, sink.Handle)
		closers = append(closers, sink)
	}
	if pub != nil {
		notifier := adapter.NewNotifier(pub, meta.Name, logger, collector)
		handlers = append(handlers, notifier.Handle)
		closers = append(closers, notifier)
	}

	sess, err := session.New(session.Config{
		Meta:             meta,
		Handler:          chain(handlers...),
		Logger:           logger,
		Collector:        collector,
		Eviction:         evictionPolicy(c, cfg),
		SweepInterval:    resolveInt(c, "sweep-interval", configVal(cfg, func(c *config.Config) int { return c.SweepInterval })),
		MaxChunkLength:   maxChunkLength(c, cfg),
		MaxMessageLength: resolveUint64(c, "max-message-length", configVal(cfg, func(c *config.Config) uint64 { return c.MaxMessageLength })),
	})
	if err != nil {
		closeAll(logger, closers)
		return cli.Exit(err.Error(), exitConfigError)
	}

	serveErr := serveStreams(ctx, c, sess, paths, logger)
	summary.Pending = sess.Close()
	closeAll(logger, closers)
	summary.Metrics = collector.Snapshot()
	if serveErr != nil {
		summary.Error = serveErr.Error()
	}

	if c.Bool("tui") {
		err = r.RenderTUI(tui.ViewStatsAssembly, summary)
	} else {
		err = r.Render(summary)
	}
	if err != nil {
		return err
	}
	if serveErr != nil {
		return cli.Exit("", exitStreamError)
	}
	return nil
}

// serveStreams opens every path and serves them into sess together.
func serveStreams(ctx context.Context, c *cli.Context, sess *session.Session, paths []string, logger *log.Logger) error {
	inputs := make([]io.ReadCloser, 0, len(paths))
	defer func() {
		for _, in := range inputs {
			iox.DiscardClose(in)
		}
	}()
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		in, err := openInput(c, p)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		readers = append(readers, in)
	}

	err := sess.ServeAll(ctx, readers...)
	if err != nil {
		logger.Error("assembly stopped", map[string]any{"error": err.Error()})
	}
	return err
}

// chain runs handlers in order, stopping at the first error.
func chain(handlers ...session.Handler) session.Handler {
	return func(ctx context.Context, msg *vst.Message) error {
		for _, h := range handlers {
			if err := h(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeMessageFile stores each message as dir/<id>.bin and records it in summary.
// Handlers run serialized, so summary needs no locking.
func writeMessageFile(dir string, summary *reader.AssemblySummary) session.Handler {
	return func(_ context.Context, msg *vst.Message) error {
		path := filepath.Join(dir, fmt.Sprintf("%d.bin", msg.ID))
		if err := os.WriteFile(path, msg.Data, 0o644); err != nil {
			return err
		}
		summary.Messages = append(summary.Messages, reader.AssembledMessage{
			MessageID:     msg.ID,
			MessageLength: msg.Length,
			Chunks:        msg.Chunks,
			Path:          path,
		})
		return nil
	}
}

func evictionPolicy(c *cli.Context, cfg *config.Config) policy.Eviction {
	var fromCfg policy.Eviction
	if cfg != nil {
		fromCfg = cfg.EvictionPolicy()
	}
	return policy.Eviction{
		MaxAge:          resolveDuration(c, "max-age", fromCfg.MaxAge),
		MaxPending:      resolveInt(c, "max-pending", fromCfg.MaxPending),
		MaxPendingBytes: resolveUint64(c, "max-pending-bytes", fromCfg.MaxPendingBytes),
	}
}

// closeAll closes the journal and adapter, logging a failure.
func closeAll(logger *log.Logger, closers []io.Closer) {
	if err := iox.CloseAll(closers...); err != nil {
		logger.Warn("close failed", map[string]any{"error": err.Error()})
	}
}

// buildJournal creates the journal client, or nil when no journal path is set.
// Returns the backend name for metrics.
func buildJournal(ctx context.Context, c *cli.Context, cfg *config.Config, sessionName string) (journal.Client, string, error) {
	jc := configVal(cfg, func(c *config.Config) config.JournalConfig { return c.Journal })
	path := resolveString(c, "journal", jc.Path)
	if path == "" {
		return nil, "", nil
	}

	jcfg := journal.Config{
		Dataset: resolveString(c, "journal-dataset", jc.Dataset),
		Session: sessionName,
	}
	backend := resolveString(c, "journal-backend", jc.Backend)

	switch backend {
	case "fs":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, "", err
		}
		client, err := journal.NewLodeClient(jcfg, path)
		if err != nil {
			return nil, "", err
		}
		return client, backend, nil
	case "s3":
		bucket, prefix := journal.ParseS3Path(path)
		client, err := journal.NewLodeS3Client(ctx, jcfg, journal.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       resolveString(c, "journal-region", jc.Region),
			Endpoint:     resolveString(c, "journal-endpoint", jc.Endpoint),
			UsePathStyle: resolveBool(c, "journal-s3-path-style", jc.S3PathStyle),
		})
		if err != nil {
			return nil, "", err
		}
		return client, backend, nil
	default:
		return nil, "", fmt.Errorf("unknown backend %q (must be fs or s3)", backend)
	}
}

// buildAdapter creates the event adapter, or nil when none is configured.
func buildAdapter(c *cli.Context, cfg *config.Config) (adapter.Adapter, error) {
	ac := configVal(cfg, func(c *config.Config) config.AdapterConfig { return c.Adapter })
	typ := resolveString(c, "adapter", ac.Type)
	if typ == "" {
		return nil, nil
	}

	url := resolveString(c, "adapter-url", ac.URL)
	if url == "" {
		return nil, errors.New("--adapter-url is required when --adapter is set")
	}
	timeout := resolveDuration(c, "adapter-timeout", ac.Timeout.Duration)
	retries := c.Int("adapter-retries")
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		retries = *ac.Retries
	}

	var (
		a   adapter.Adapter
		err error
	)
	switch typ {
	case "redis":
		a, err = redis.New(redis.Config{
			URL:     url,
			Channel: resolveString(c, "adapter-channel", ac.Channel),
			Timeout: timeout,
			Retries: retries,
		})
	case "webhook":
		a, err = webhook.New(webhook.Config{
			URL:     url,
			Headers: ac.Headers,
			Timeout: timeout,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q (must be redis or webhook)", typ)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
