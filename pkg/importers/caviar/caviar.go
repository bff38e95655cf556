// Package caviar extracts receipts from Caviar order emails.
package caviar

import (
	"regexp"
	"strings"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "caviar"

var (
	totalRegex   = regexp.MustCompile(`Total Charged \$([0-9.,]+)`)
	vendorRegex  = regexp.MustCompile(`Your Caviar (?:pickup )?order from (.*)$`)
	addressRegex = regexp.MustCompile(`(?m)Delivery Address\s*\n([^\n]+)\n`)
)

// Extractor implements api.Extractor for Caviar.
type Extractor struct{}

// New returns the Caviar extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable vendor name.
func (e *Extractor) DisplayName() string {
	return "Caviar"
}

// Query returns the provider search fragment.
func (e *Extractor) Query() api.Query {
	return api.Query{
		Q: `from:(support@trycaviar.com) ` +
			`subject:("Your Caviar order from" OR "Your Caviar pickup order from")`,
	}
}

// Extract reads the plaintext receipt. "Ready for pickup" notices are skipped since a
// separate receipt email carries the same order.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	if !msg.HasText() {
		return nil
	}
	if strings.Contains(msg.Subject, "ready for pickup") {
		return nil
	}

	amount, ok := importers.Submatch(totalRegex, msg.Text)
	if !ok {
		return nil
	}

	vendor, _ := importers.Submatch(vendorRegex, msg.Subject)

	address := importers.PickupOrder
	if !strings.Contains(msg.Subject, "pickup order") {
		addr, _ := importers.Submatch(addressRegex, msg.Text)
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
