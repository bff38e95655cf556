// Package ubereats extracts receipts from Uber Eats order receipts.
package ubereats

import (
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "ubereats"

var (
	amountRegex = regexp.MustCompile(`\$([0-9.,]+)`)
	vendorRegex = regexp.MustCompile(`You ordered from (.*)`)
)

// Extractor implements api.Extractor and api.RenderTransformer for Uber Eats.
type Extractor struct{}

// New returns the Uber Eats extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable vendor name.
func (e *Extractor) DisplayName() string {
	return "Uber Eats"
}

// Query returns the provider search fragment. Uber sends the order and the tip as
// separate receipts with the same template; only the one listing the tip is matched so
// orders are not counted twice. Orders without a tip are therefore missed.
func (e *Extractor) Query() api.Query {
	return api.Query{
		Q: `from:("Uber Receipts") subject:order "Delivery person tip" -refund`,
	}
}

// Extract reads the receipt table cells.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	doc, err := importers.Parse(msg.HTML)
	if err != nil {
		return nil
	}

	amount, ok := importers.Submatch(amountRegex, doc.Find("td.total_head:last-child").First().Text())
	if !ok {
		return nil
	}

	// TODO: pickup receipts have no "Delivered to" block and fall back to unknown.
	var address string
	doc.Find("td.Uber18_text_p2.black").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "Delivered to") {
			return true
		}
		address = s.Parent().Parent().Find("tr:last-child > td").First().Text()
		return false
	})

	// Case-sensitive on purpose: some receipts carry a promo banner reading
	// "If you ordered from a local restaurant...".
	var vendor string
	doc.Find("td.Uber18_text_p1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m, ok := importers.Submatch(vendorRegex, s.Text())
		if ok {
			vendor = m
		}
		return !ok
	})

	return &api.ExtractionResult{
		Filename:        importers.Filename(name, msg.Date, msg.ID()),
		Date:            msg.Date,
		Amount:          importers.CleanAmount(amount),
		DeliveryAddress: importers.OrUnknown(address),
		VendorName:      importers.OrUnknown(vendor),
	}
}

// TransformForRendering hides the "Amex Benefit" banner some receipts carry so it does
// not end up in the rendered document.
func (e *Extractor) TransformForRendering(msg *api.NormalizedMessage) string {
	doc, err := importers.Parse(msg.HTML)
	if err != nil {
		return msg.HTML
	}

	var selectors []string
	doc.Find("td.Uber18_text_p1.flag").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(s.Text(), "Amex Benefit") {
			return
		}
		classes := strings.Fields(s.AttrOr("class", ""))
		slices.Sort(classes)
		sel := "td." + strings.Join(classes, ".")
		if !slices.Contains(selectors, sel) {
			selectors = append(selectors, sel)
		}
	})
	if len(selectors) == 0 {
		return msg.HTML
	}

	css := "\n<style type=\"text/css\">\n  " + strings.Join(selectors, ", ") +
		" {\n    display: none;\n  }\n</style>\n"
	return msg.HTML + css
}
