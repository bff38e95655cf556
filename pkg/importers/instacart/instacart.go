// Package instacart extracts receipts from Instacart delivery receipts.
package instacart

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "instacart"

var (
	totalRegex  = regexp.MustCompile(`Total Charged \$([0-9.,]+)`)
	vendorRegex = regexp.MustCompile(`Your order from (.*) was placed`)
)

// Extractor implements api.Extractor for Instacart.
type Extractor struct{}

// New returns the Instacart extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable vendor name.
func (e *Extractor) DisplayName() string {
	return "Instacart"
}

// Query returns the provider search fragment.
func (e *Extractor) Query() api.Query {
	return api.Query{
		Q: `from:(orders@instacart.com) subject:receipt`,
	}
}

// Extract reads the charge table of the receipt. The store name is spread over several
// delivery schedule blocks, which are merged before matching.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	doc, err := importers.Parse(msg.HTML)
	if err != nil {
		return nil
	}

	amount := chargedAmount(doc)
	if amount == "" {
		if m, ok := importers.Submatch(totalRegex, msg.Text); ok {
			amount = importers.CleanAmount(m)
		}
	}
	if amount == "" {
		return nil
	}

	var blocks []string
	doc.Find("div.DriverDeliverySchedule").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	vendor, ok := importers.Submatch(vendorRegex, strings.Join(blocks, "\n\n"))
	if !ok {
		vendor, _ = importers.Submatch(vendorRegex, msg.Subject)
	}

	return &api.ExtractionResult{
		Filename:        importers.Filename(name, msg.Date, msg.ID()),
		Date:            msg.Date,
		Amount:          amount,
		DeliveryAddress: importers.Unknown,
		VendorName:      importers.OrUnknown(vendor),
	}
}

func chargedAmount(doc *goquery.Document) string {
	var amount string
	doc.Find("td.charge-type").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "Total Charged") {
			return true
		}
		amount = importers.CleanAmount(s.Parent().Find("td.amount").First().Text())
		return false
	})
	return amount
}
