package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/receiptor/internal/registry"
	"github.com/ArionMiles/receiptor/pkg/client"
	"github.com/ArionMiles/receiptor/pkg/collate"
	"github.com/ArionMiles/receiptor/pkg/config"
	"github.com/ArionMiles/receiptor/pkg/export"
	csvexport "github.com/ArionMiles/receiptor/pkg/export/csv"
	sheetsexport "github.com/ArionMiles/receiptor/pkg/export/sheets"
	"github.com/ArionMiles/receiptor/pkg/render"
	"github.com/ArionMiles/receiptor/pkg/summary"
)

func newCollateCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collate",
		Short: "Combine downloaded receipts into one report with a cover page",
		Example: "  receiptor collate --in-dir out\n" +
			"  receiptor collate --in-dir out --vendors grubhub --concatenate\n" +
			"  receiptor collate --in-dir out --csv-out out/receipts.csv",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runCollate(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.String("in-dir", config.DefaultOutDir, "directory holding the summary file and artifacts")
	f.String("out-file", config.DefaultOutFile, "report file name, written inside in-dir")
	f.StringSlice("vendors", nil, "vendors to include (default all)")
	f.Bool("concatenate", false, "append every receipt's PDF after the cover page")
	f.String("csv-out", "", "also export the report rows to this CSV file")
	f.String("sheet-id", "", "also export the report rows to this spreadsheet")
	f.String("sheet-title", "", "title of a new spreadsheet to export to")
	f.String("sheet-name", config.DefaultSheetName, "sheet to append rows to")
	addAuthFlags(cmd)
	addRenderFlags(cmd)

	return cmd
}

func runCollate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateCollate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	entries, err := summary.Load(summary.Path(cfg.InDir))
	if err != nil {
		return err
	}

	renderer := render.New(render.Config{Binary: cfg.Wkhtmltopdf}, logger)
	if err := renderer.Check(ctx); err != nil {
		return err
	}

	collator := collate.New(renderer, render.NewMerger(logger), registry.Default(), logger)
	report, err := collator.Collate(ctx, entries, collate.Options{
		InDir:         cfg.InDir,
		OutFile:       cfg.OutFile,
		Vendors:       cfg.Vendors,
		Concatenate:   cfg.Concatenate,
		RenderOptions: cfg.RenderOptions(),
	})
	if err != nil {
		return err
	}
	logger.Info("wrote report", "path", report.Path, "entries", len(report.Rows), "total", report.Total)

	exporters, err := buildExporters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	for _, e := range exporters {
		if err := e.Export(ctx, report); err != nil {
			return fmt.Errorf("exporting report: %w", err)
		}
	}
	return nil
}

func buildExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]export.Exporter, error) {
	var exporters []export.Exporter

	if cfg.CSVOut != "" {
		exporters = append(exporters, csvexport.New(csvexport.Config{FilePath: cfg.CSVOut}, logger))
	}

	if cfg.SheetID != "" || cfg.SheetTitle != "" {
		httpClient, err := client.New(ctx, client.Config{SecretFile: cfg.Credentials, TokenFile: cfg.Token}, logger, client.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("authorizing sheets: %w", err)
		}
		title := cfg.SheetTitle
		if title == "" {
			title = "Receipts " + time.Now().Format(config.DateLayout)
		}
		e, err := sheetsexport.New(ctx, httpClient, sheetsexport.Config{
			SheetID:    cfg.SheetID,
			SheetTitle: title,
			SheetName:  cfg.SheetName,
		}, logger)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, e)
	}

	return exporters, nil
}
