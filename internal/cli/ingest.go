package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/applicants/internal/config"
	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/source"
)

// IngestOptions holds flags of the ingest command.
type IngestOptions struct {
	Mode   string
	DryRun bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <path|s3://bucket/key>...",
		Short: "Ingest ranking list workbooks",
		Long: `Ingest one or more ranking list workbooks.

Documents are processed in order. A failing document is reported and the
remaining ones are still ingested; the command exits non-zero if any failed.
With --dry-run everything is parsed into an in-memory store and nothing is
written to the database.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "list family: extended or simple (default from INGEST_MODE)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "parse without writing to the database")

	return cmd
}

func runIngest(cmd *cobra.Command, rootOpts *RootOptions, opts *IngestOptions, locations []string) error {
	ctx := cmd.Context()
	cfg := rootOpts.Config

	var mode core.Mode
	if opts.Mode != "" {
		m, ok := core.ParseMode(opts.Mode)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be extended or simple", opts.Mode))
		}
		mode = m
	}

	dbCfg := cfg.Database
	if opts.DryRun {
		dbCfg = config.DatabaseConfig{Driver: config.DriverMemory}
	}
	store, err := openStore(ctx, dbCfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer store.Close()

	svc, err := newService(cfg, store, nil, mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure ingest", err)
	}

	opener := source.NewOpener(source.S3Config{
		Region:          cfg.Source.Region,
		Endpoint:        cfg.Source.Endpoint,
		PathStyle:       cfg.Source.PathStyle,
		AccessKeyID:     cfg.Source.AccessKeyID,
		SecretAccessKey: cfg.Source.SecretAccessKey,
	})

	out := &OutputFormatter{Format: rootOpts.Output, Writer: cmd.OutOrStdout()}
	failed := 0
	for _, loc := range locations {
		doc, closer, err := opener.Open(ctx, loc, mode)
		if err != nil {
			failed++
			out.IngestError(loc, err)
			continue
		}
		sum, err := svc.Ingest(ctx, doc)
		closer.Close()
		if err != nil {
			failed++
			out.IngestError(loc, err)
			continue
		}
		out.Summary(sum)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d documents failed", failed, len(locations)))
	}
	return nil
}
