// Package importers holds helpers shared by the per-vendor extractors.
package importers

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Sentinel values for metadata that could not be extracted.
const (
	Unknown     = "unknown"
	PickupOrder = "(pickup order)"
)

// FilenameDateLayout encodes the transaction date in artifact filenames (MMDDYYYY_HHmmss).
const FilenameDateLayout = "01022006_150405"

// Filename builds the extension-less artifact name for a message. It is unique per
// message because it embeds the provider message identifier.
func Filename(vendor string, date time.Time, messageID string) string {
	return vendor + "_" + date.Format(FilenameDateLayout) + "_" + messageID
}

var spaceRun = regexp.MustCompile(` +`)

// CollapseSpaces replaces runs of spaces with a single space.
func CollapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// Submatch returns the first capture group of re in s.
func Submatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// OrUnknown trims s and falls back to Unknown when it is empty.
func OrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

// CleanAmount strips currency symbols, grouping commas and whitespace from a
// matched amount, e.g. " $1,234.50 " -> "1234.50".
func CleanAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// Parse builds a goquery document from an HTML body. goquery parsing does not fail
// on malformed markup, so an error here means the reader itself failed.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
