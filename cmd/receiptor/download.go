package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/internal/registry"
	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/artifact"
	"github.com/ArionMiles/receiptor/pkg/client"
	"github.com/ArionMiles/receiptor/pkg/config"
	"github.com/ArionMiles/receiptor/pkg/pipeline"
	"github.com/ArionMiles/receiptor/pkg/reader/gmail"
	"github.com/ArionMiles/receiptor/pkg/reader/mbox"
	"github.com/ArionMiles/receiptor/pkg/render"
	"github.com/ArionMiles/receiptor/pkg/retriever"
	"github.com/ArionMiles/receiptor/pkg/summary"
)

func newDownloadCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Extract receipts from the mailbox and write their artifacts",
		Example: "  receiptor download --start-date 2021-01-01 --end-date 2021-01-31\n" +
			"  receiptor download --vendors caviar,doordash --artifacts json,pdf\n" +
			"  receiptor download --mbox takeout.mbox --out-dir receipts",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDownload(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.String("out-dir", config.DefaultOutDir, "directory for artifacts and the summary file")
	f.String("start-date", "", "first day to search, YYYY-MM-DD (default first day of this month)")
	f.String("end-date", "", "last day to search, YYYY-MM-DD (default today)")
	f.StringSlice("vendors", nil, "vendors to process (default all)")
	f.StringSlice("artifacts", nil, "artifact kinds to write: json, html, txt, pdf (default all)")
	f.Int64("max-results", 0, "only fetch the first page of this many messages per vendor")
	f.Int("fetch-concurrency", retriever.DefaultFetchConcurrency, "messages fetched in parallel")
	f.Uint("write-attempts", 3, "attempts per artifact file")
	f.String("mbox", "", "read from this mbox archive instead of Gmail")
	addAuthFlags(cmd)
	addRenderFlags(cmd)

	return cmd
}

func runDownload(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	now := time.Now()
	if err := cfg.ValidateDownload(now); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	start, end, _ := cfg.DateRange(now)
	kinds, _ := cfg.ArtifactKinds()

	extractors, err := registry.Default().Select(cfg.Vendors)
	if err != nil {
		return err
	}

	source, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var renderer api.Renderer
	if slices.Contains(kinds, api.ArtifactPDF) {
		r := render.New(render.Config{Binary: cfg.Wkhtmltopdf}, logger)
		if err := r.Check(ctx); err != nil {
			return fmt.Errorf("pdf artifacts need %s: %w", cfg.Wkhtmltopdf, err)
		}
		renderer = r
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	writer := artifact.New(artifact.Config{
		OutDir:        cfg.OutDir,
		Attempts:      cfg.WriteAttempts,
		RenderOptions: cfg.RenderOptions(),
	}, renderer, logger)

	p := pipeline.New(
		retriever.New(source, retriever.Config{FetchConcurrency: cfg.FetchConcurrency}, logger),
		writer,
		pipeline.Config{Artifacts: kinds, Start: start, End: end, MaxResults: cfg.MaxResults},
		logger,
	)

	logger.Info("starting download",
		"vendors", len(extractors),
		"start", start.Format(config.DateLayout),
		"end", end.Format(time.DateTime),
		"out_dir", cfg.OutDir,
	)

	result, runErr := p.Run(ctx, extractors)

	if err := flushSummary(summary.Path(cfg.OutDir), result, runErr, logger); err != nil {
		return errors.Join(runErr, err)
	}

	for _, s := range result.Stats {
		logger.Info("vendor summary",
			"vendor", s.Vendor,
			"retrieved", s.Retrieved,
			"extracted", s.Extracted,
			"ignored", s.Ignored,
			"failed", s.Failed,
		)
	}
	return runErr
}

// flushSummary writes the run's entries to path. A failed run that produced no
// entries leaves the previous summary in place.
func flushSummary(path string, result *pipeline.Result, runErr error, logger *slog.Logger) error {
	if runErr != nil && len(result.Entries) == 0 {
		logger.Warn("run failed before extracting any receipt, keeping previous summary", "file", path)
		return nil
	}

	store := summary.New(path, logger)
	store.Append(result.Entries...)
	return store.Flush()
}

// openSource returns the mbox archive when one is configured and Gmail otherwise.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (api.MailSource, error) {
	if cfg.Mbox != "" {
		src, err := mbox.Open(cfg.Mbox, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	httpClient, err := client.New(ctx, client.Config{SecretFile: cfg.Credentials, TokenFile: cfg.Token}, logger, client.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("authorizing gmail: %w", err)
	}
	src, err := gmail.New(httpClient, gmail.Config{}, logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}
