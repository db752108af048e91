package cmd

import (
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/config"
	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/cli/render"
	"github.com/justapithecus/vst/journal"
)

// journalFlags are shared by assemble (write side) and journal list (read side).
func journalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "journal",
			Usage: "Journal path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "journal-backend",
			Usage: "Journal backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "journal-dataset",
			Usage: "Journal dataset id",
			Value: journal.DefaultDataset,
		},
		&cli.StringFlag{
			Name:  "journal-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "journal-endpoint",
			Usage: "Custom S3 endpoint (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "journal-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
	}
}

// JournalCommand returns the journal command with subcommands.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Read the message journal",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List journaled messages",
				Flags: append(append(ReadOnlyFlags(), ConfigFlag,
					&cli.StringFlag{
						Name:  "session",
						Usage: "Only list messages of this session",
					},
				), journalFlags()...),
				Action: journalListAction,
			},
		},
	}
}

func journalListAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for journal list command", exitConfigError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ds, err := openJournalDataset(c.Context, c, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("journal: %v", err), exitConfigError)
	}
	entries, err := reader.ListJournal(c.Context, ds, c.String("session"))
	if err != nil {
		return err
	}
	return r.Render(entries)
}

// openJournalDataset opens the journal for reading with the same flag and
// config resolution as the write path.
func openJournalDataset(ctx context.Context, c *cli.Context, cfg *config.Config) (lode.Dataset, error) {
	jc := configVal(cfg, func(c *config.Config) config.JournalConfig { return c.Journal })
	path := resolveString(c, "journal", jc.Path)
	if path == "" {
		return nil, fmt.Errorf("--journal is required")
	}
	dataset := resolveString(c, "journal-dataset", jc.Dataset)

	switch backend := resolveString(c, "journal-backend", jc.Backend); backend {
	case "fs":
		return journal.NewReadDatasetFS(dataset, path)
	case "s3":
		bucket, prefix := journal.ParseS3Path(path)
		factory, err := journal.S3Factory(ctx, journal.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       resolveString(c, "journal-region", jc.Region),
			Endpoint:     resolveString(c, "journal-endpoint", jc.Endpoint),
			UsePathStyle: resolveBool(c, "journal-s3-path-style", jc.S3PathStyle),
		})
		if err != nil {
			return nil, err
		}
		return journal.NewReadDataset(dataset, factory)
	default:
		return nil, fmt.Errorf("unknown backend %q (must be fs or s3)", backend)
	}
}
