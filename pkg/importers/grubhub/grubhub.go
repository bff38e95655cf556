// Package grubhub extracts receipts from Grubhub order emails.
package grubhub

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "grubhub"

var (
	chargeRegex  = regexp.MustCompile(`\$([0-9.,]+)`)
	orderRegex   = regexp.MustCompile(`Your (pickup|delivery) order from (.*) is being prepared`)
	addressRegex = regexp.MustCompile(`Delivery \([^)]+\)[^,]+, (.*)\([0-9]{3}\)`)
)

// Extractor implements api.Extractor for Grubhub.
type Extractor struct{}

// New returns the Grubhub extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable vendor name.
func (e *Extractor) DisplayName() string {
	return "Grubhub"
}

// Query returns the provider search fragment.
func (e *Extractor) Query() api.Query {
	return api.Query{
		Q: `from:(orders@eat.grubhub.com) subject:("Your order from")`,
	}
}

// Extract reads the receipt from the main content table cells. Grubhub templates leave
// runs of spaces where variables are missing, so every cell text is collapsed before
// matching.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	// Scheduled orders send two emails that both carry the receipt.
	if strings.Contains(msg.Subject, "has been scheduled") {
		return nil
	}

	doc, err := importers.Parse(msg.HTML)
	if err != nil {
		return nil
	}
	cells := contentCells(doc)

	amount, ok := importers.Submatch(chargeRegex, findCell(cells, "Total charge"))
	if !ok {
		return nil
	}

	var orderType, vendor string
	if m := orderRegex.FindStringSubmatch(findCell(cells, "is being prepared")); m != nil {
		orderType, vendor = m[1], m[2]
	}

	address := importers.PickupOrder
	if orderType != "pickup" {
		var deliveryText string
		for i, cell := range cells {
			if strings.Contains(cell, "Contact restaurant for delivery issues") {
				if i+1 < len(cells) {
					deliveryText = cells[i+1]
				}
				break
			}
		}
		addr, _ := importers.Submatch(addressRegex, deliveryText)
		address = importers.OrUnknown(addr)
	}

	return &api.ExtractionResult{
		Filename:        importers.Filename(name, msg.Date, msg.ID()),
		Date:            msg.Date,
		Amount:          importers.CleanAmount(amount),
		DeliveryAddress: address,
		VendorName:      importers.OrUnknown(vendor),
	}
}

// contentCells returns the collapsed text of each non-empty top-level content table.
func contentCells(doc *goquery.Document) []string {
	var cells []string
	doc.Find("td#cellMainContent > table").Each(func(_ int, s *goquery.Selection) {
		if text := importers.CollapseSpaces(s.Text()); text != "" {
			cells = append(cells, text)
		}
	})
	return cells
}

func findCell(cells []string, needle string) string {
	for _, cell := range cells {
		if strings.Contains(cell, needle) {
			return cell
		}
	}
	return ""
}
