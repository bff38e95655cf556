// Package dummy provides an extractor that accepts any message. It exists to smoke
// test the pipeline and is never part of the active registry.
package dummy

import (
	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

const name = "dummy"

// Amount is the fixed amount reported for every message.
const Amount = "420.69"

// Extractor implements api.Extractor.
type Extractor struct {
	query string
}

// New returns a dummy extractor that lists messages matching query, one page of one.
func New(query string) *Extractor {
	return &Extractor{query: query}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return name
}

// DisplayName returns the human-readable name.
func (e *Extractor) DisplayName() string {
	return "Dummy"
}

// Query returns the configured search fragment capped at one result.
func (e *Extractor) Query() api.Query {
	return api.Query{Q: e.query, MaxResults: 1}
}

// Extract accepts every message.
func (e *Extractor) Extract(msg *api.NormalizedMessage) *api.ExtractionResult {
	return &api.ExtractionResult{
		Filename: importers.Filename(name, msg.Date, msg.ID()),
		Date:     msg.Date,
		Amount:   Amount,
	}
}
