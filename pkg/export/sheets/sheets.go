// Package sheets implements an Exporter that writes report rows to Google Sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/receiptor/pkg/collate"
	"github.com/ArionMiles/receiptor/pkg/export"
	"github.com/ArionMiles/receiptor/pkg/export/buffered"
)

// Defaults.
const (
	DefaultBatchSize  = 100
	DefaultRetryDelay = 60 * time.Second
	DefaultAttempts   = 3
)

// Config holds configuration for the Sheets exporter.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
	// BatchSize is the number of rows per append call.
	BatchSize int
	// RetryDelay is the wait after a rate-limited call.
	RetryDelay time.Duration
}

// Exporter appends report rows to a spreadsheet.
type Exporter struct {
	client *sheets.Service
	cfg    Config
	logger *slog.Logger

	spreadsheetID string
}

// New creates a Sheets exporter authorized by httpClient.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Exporter, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return NewWithService(client, cfg, logger), nil
}

// NewWithService creates a Sheets exporter around an existing service.
func NewWithService(client *sheets.Service, cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Exporter{client: client, cfg: cfg, logger: logger.With("component", "sheets_export")}
}

// SpreadsheetID returns the spreadsheet written by the last Export.
func (e *Exporter) SpreadsheetID() string {
	return e.spreadsheetID
}

// Export appends every row and a total row. A new spreadsheet with a header row is
// created when SheetID is empty or cannot be opened.
func (e *Exporter) Export(ctx context.Context, report *collate.Report) error {
	id, err := e.initSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("initializing spreadsheet: %w", err)
	}
	e.spreadsheetID = id

	flushBatch := func(ctx context.Context, rows []collate.Row) error {
		values := make([][]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, cells(export.Record(row)))
		}
		return e.appendValues(ctx, values)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	buf := buffered.New(flushBatch, buffered.Config{BatchSize: e.cfg.BatchSize}, e.logger)
	if err := buf.Write(ctx, buffered.Feed(feedCtx, report.Rows)); err != nil {
		return err
	}
	if err := e.appendValues(ctx, [][]any{cells(export.TotalRecord(report))}); err != nil {
		return err
	}

	e.logger.Info("exported report", "spreadsheet_id", id, "rows", buf.Flushed())
	return nil
}

func (e *Exporter) initSpreadsheet(ctx context.Context) (string, error) {
	if e.cfg.SheetID != "" {
		spreadsheet, err := e.client.Spreadsheets.Get(e.cfg.SheetID).Context(ctx).Do()
		if err == nil {
			e.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", e.cfg.SheetID)
			return spreadsheet.SpreadsheetId, nil
		}
		e.logger.Warn("failed to get spreadsheet, will create new one", "id", e.cfg.SheetID, "error", err)
	}

	spreadsheet, err := e.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: e.cfg.SheetTitle},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: e.cfg.SheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating spreadsheet: %w", err)
	}
	e.logger.Info("created new spreadsheet", "title", e.cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	headerRange := fmt.Sprintf("%s!A1:F1", e.cfg.SheetName)
	_, err = e.client.Spreadsheets.Values.Update(spreadsheet.SpreadsheetId, headerRange, &sheets.ValueRange{
		Values: [][]any{cells(export.Headers)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("writing headers: %w", err)
	}

	return spreadsheet.SpreadsheetId, nil
}

func (e *Exporter) appendValues(ctx context.Context, values [][]any) error {
	writeRange := fmt.Sprintf("%s!A2:F2", e.cfg.SheetName)
	req := &sheets.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := e.client.Spreadsheets.Values.Append(e.spreadsheetID, writeRange, req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				e.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(DefaultAttempts),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending rows to sheet: %w", err)
	}
	return nil
}

func cells(record []string) []any {
	out := make([]any, len(record))
	for i, v := range record {
		out[i] = v
	}
	return out
}
