// Package csv implements an Exporter that writes report rows to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/receiptor/pkg/collate"
	"github.com/ArionMiles/receiptor/pkg/export"
)

// Config holds configuration for the CSV exporter.
type Config struct {
	// FilePath is the path to the CSV output file. It is replaced on every export.
	FilePath string
}

// Exporter writes report rows to a CSV file.
type Exporter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a new CSV exporter.
func New(cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{cfg: cfg, logger: logger.With("component", "csv_export")}
}

// Export writes a header, one record per row and a total record.
func (e *Exporter) Export(ctx context.Context, report *collate.Report) (err error) {
	file, err := os.OpenFile(e.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening csv file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing csv file: %w", closeErr)
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write(export.Headers); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}

	for _, row := range report.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(export.Record(row)); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	if err := w.Write(export.TotalRecord(report)); err != nil {
		return fmt.Errorf("writing total: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	e.logger.Info("exported report", "file", e.cfg.FilePath, "rows", len(report.Rows))
	return nil
}
