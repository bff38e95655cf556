// Package collate combines summary entries into one ordered, totalled report with a
// generated cover page.
package collate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// ErrNoEntries is returned when filtering leaves nothing to collate.
var ErrNoEntries = errors.New("no entries to collate")

// DefaultOutFile is the report file name used when Options leaves it unset.
const DefaultOutFile = "receipts.pdf"

// Merger concatenates documents, in order, into outFile.
type Merger interface {
	Merge(ctx context.Context, inFiles []string, outFile string) error
}

// DisplayNamer resolves a vendor name to its human-readable form.
type DisplayNamer interface {
	DisplayName(name string) string
}

// Row is one line of the cover page.
type Row struct {
	Date time.Time
	// Vendor is the display name of the extractor that produced the entry.
	Vendor   string
	Merchant string
	Amount   decimal.Decimal
	Entry    api.SummaryEntry
}

// Report is the collated result.
type Report struct {
	Rows []Row
	// Total is the sum of all row amounts with two decimal places.
	Total string
	// Path is the written report document.
	Path string
}

// Options selects what to collate and where to write it.
type Options struct {
	// InDir holds the summary file and the per-message artifacts.
	InDir string
	// OutFile is the report file name inside InDir.
	OutFile string
	// Vendors restricts the report to these vendor names. Empty includes all.
	Vendors []string
	// Concatenate appends every entry's rendered document after the cover page.
	Concatenate   bool
	RenderOptions api.RenderOptions
}

// Collator builds reports.
type Collator struct {
	renderer api.Renderer
	merger   Merger
	names    DisplayNamer
	logger   *slog.Logger
}

// New creates a collator. merger may be nil when reports are never concatenated.
func New(renderer api.Renderer, merger Merger, names DisplayNamer, logger *slog.Logger) *Collator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Collator{
		renderer: renderer,
		merger:   merger,
		names:    names,
		logger:   logger,
	}
}

// Build filters, orders and totals entries. An entry is kept when it is not excluded,
// its vendor is in vendors (or vendors is empty) and, when requirePDF is set, it has a
// rendered document. Rows are sorted by date; equal dates keep summary order.
func Build(entries []api.SummaryEntry, vendors []string, requirePDF bool, names DisplayNamer) (*Report, error) {
	rows := make([]Row, 0, len(entries))
	total := decimal.Zero

	for _, entry := range entries {
		if entry.Exclude {
			continue
		}
		if len(vendors) > 0 && !slices.Contains(vendors, entry.ImporterName) {
			continue
		}
		if _, ok := entry.File(api.ArtifactPDF); requirePDF && !ok {
			continue
		}

		amount, err := decimal.NewFromString(entry.Metadata.Amount)
		if err != nil {
			return nil, fmt.Errorf("parsing amount %q of message %s: %w", entry.Metadata.Amount, entry.MessageID, err)
		}
		total = total.Add(amount)

		rows = append(rows, Row{
			Date:     entry.Metadata.Date,
			Vendor:   names.DisplayName(entry.ImporterName),
			Merchant: entry.Metadata.VendorName,
			Amount:   amount,
			Entry:    entry,
		})
	}

	if len(rows) == 0 {
		return nil, ErrNoEntries
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		return a.Date.Compare(b.Date)
	})

	return &Report{Rows: rows, Total: total.StringFixed(2)}, nil
}

// Collate builds the report from entries and writes it to InDir/OutFile: the cover
// page alone, or the cover followed by every entry's document when Concatenate is set.
func (c *Collator) Collate(ctx context.Context, entries []api.SummaryEntry, opts Options) (*Report, error) {
	if opts.OutFile == "" {
		opts.OutFile = DefaultOutFile
	}
	if opts.Concatenate && c.merger == nil {
		return nil, fmt.Errorf("concatenation requested without a merger")
	}

	report, err := Build(entries, opts.Vendors, opts.Concatenate, c.names)
	if err != nil {
		return nil, err
	}
	c.logger.Info("collating entries", "count", len(report.Rows), "total", report.Total)

	coverHTML, err := RenderCover(report)
	if err != nil {
		return nil, err
	}

	report.Path = filepath.Join(opts.InDir, opts.OutFile)
	if !opts.Concatenate {
		c.logger.Info("generating cover page", "path", report.Path)
		if err := c.renderer.Render(ctx, coverHTML, report.Path, opts.RenderOptions); err != nil {
			return nil, fmt.Errorf("rendering cover page: %w", err)
		}
		return report, nil
	}

	coverFile, err := os.CreateTemp(opts.InDir, "cover-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating cover page file: %w", err)
	}
	coverPath := coverFile.Name()
	coverFile.Close()
	defer os.Remove(coverPath)

	c.logger.Info("generating cover page", "path", coverPath)
	if err := c.renderer.Render(ctx, coverHTML, coverPath, opts.RenderOptions); err != nil {
		return nil, fmt.Errorf("rendering cover page: %w", err)
	}

	inFiles := make([]string, 0, len(report.Rows)+1)
	inFiles = append(inFiles, coverPath)
	for _, row := range report.Rows {
		name, _ := row.Entry.File(api.ArtifactPDF)
		inFiles = append(inFiles, filepath.Join(opts.InDir, name))
	}

	c.logger.Info("concatenating documents", "count", len(inFiles), "path", report.Path)
	if err := c.merger.Merge(ctx, inFiles, report.Path); err != nil {
		return nil, fmt.Errorf("concatenating documents: %w", err)
	}

	return report, nil
}
