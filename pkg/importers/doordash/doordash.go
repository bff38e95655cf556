// Package doordash extracts receipts from DoorDash order confirmations.
package doordash

import (
	"regexp"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "doordash"

var (
	totalRegex   = regexp.MustCompile(`Total Charged \$([0-9.,]+)`)
	vendorRegex  = regexp.MustCompile(`Order Confirmation for .* from (.*)$`)
	addressRegex = regexp.MustCompile(`(?m)Your receipt\s*\n([^\n]+)\n`)
)

// Extractor implements api.Extractor for DoorDash.
type Extractor struct{}

// New returns the DoorDash extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable vendor name.
func (e *Extractor) DisplayName() string {
	return "DoorDash"
}

// Query returns the provider search fragment.
func (e *Extractor) Query() api.Query {
	return api.Query{
		Q: `from:(no-reply@doordash.com) subject:("Order Confirmation")`,
	}
}

// Extract reads the plaintext receipt.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	if !msg.HasText() {
		return nil
	}

	amount, ok := importers.Submatch(totalRegex, msg.Text)
	if !ok {
		return nil
	}

	vendor, _ := importers.Submatch(vendorRegex, msg.Subject)
	// TODO: pickup orders have no "Your receipt" address block and fall back to unknown.
	address, _ := importers.Submatch(addressRegex, msg.Text)

	return &api.ExtractionResult{
		Filename:        importers.Filename(name, msg.Date, msg.ID()),
		Date:            msg.Date,
		Amount:          importers.CleanAmount(amount),
		DeliveryAddress: importers.OrUnknown(address),
		VendorName:      importers.OrUnknown(vendor),
	}
}
