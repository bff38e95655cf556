// Package export writes collated report rows to tabular destinations.
package export

import (
	"context"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/collate"
)

// DateLayout formats the row date column.
const DateLayout = "2006-01-02"

// Headers are the column names shared by every exporter.
var Headers = []string{"Date", "Vendor", "Merchant", "Amount", "Message ID", "Document"}

// Exporter writes report rows to one destination.
type Exporter interface {
	Export(ctx context.Context, report *collate.Report) error
}

// Record returns the cells of one row, in Headers order.
func Record(row collate.Row) []string {
	doc, _ := row.Entry.File(api.ArtifactPDF)
	return []string{
		row.Date.Format(DateLayout),
		row.Vendor,
		row.Merchant,
		row.Amount.StringFixed(2),
		row.Entry.MessageID,
		doc,
	}
}

// TotalRecord is the trailing summary row.
func TotalRecord(report *collate.Report) []string {
	return []string{"", "Total", "", report.Total, "", ""}
}
