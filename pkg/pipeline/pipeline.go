// Package pipeline runs every selected extractor over its retrieved messages and
// writes the artifacts of each recognized receipt.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/mimetree"
	"github.com/ArionMiles/receiptor/pkg/retriever"
)

// Retriever returns the raw messages matching a request.
type Retriever interface {
	Retrieve(ctx context.Context, req retriever.Request) ([]*api.RawMessage, error)
}

// ArtifactWriter writes the artifact files named by a summary entry.
type ArtifactWriter interface {
	Write(ctx context.Context, entry *api.SummaryEntry, msg *api.NormalizedMessage, ext api.Extractor) error
}

// Config holds configuration for a pipeline run.
type Config struct {
	// Artifacts are the kinds to emit per message.
	Artifacts []api.ArtifactKind
	// Start and End bound the retrieval date range.
	Start time.Time
	End   time.Time
	// MaxResults, when > 0, overrides every extractor's page cap.
	MaxResults int64
}

// Stats counts per-vendor outcomes.
type Stats struct {
	Vendor    string `json:"vendor"`
	Retrieved int    `json:"retrieved"`
	Extracted int    `json:"extracted"`
	Ignored   int    `json:"ignored"`
	Failed    int    `json:"failed"`
}

// Result is the outcome of a run.
type Result struct {
	Entries []api.SummaryEntry
	Stats   []Stats
}

// Pipeline drives retrieval, extraction and artifact writing.
type Pipeline struct {
	retriever Retriever
	writer    ArtifactWriter
	cfg       Config
	logger    *slog.Logger
}

// New creates a pipeline.
func New(r Retriever, w ArtifactWriter, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		retriever: r,
		writer:    w,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes the extractors one after another in the given order. A retrieval or
// artifact failure stops the run; the result then holds the entries of every vendor
// that completed before the failure.
func (p *Pipeline) Run(ctx context.Context, extractors []api.Extractor) (*Result, error) {
	result := &Result{Entries: []api.SummaryEntry{}}

	for _, ext := range extractors {
		entries, stats, err := p.RunVendor(ctx, ext)
		result.Stats = append(result.Stats, stats)
		if err != nil {
			return result, fmt.Errorf("processing vendor %s: %w", ext.Name(), err)
		}
		result.Entries = slices.Concat(result.Entries, entries)
	}

	return result, nil
}

// RunVendor retrieves the vendor's messages and processes each in listing order.
func (p *Pipeline) RunVendor(ctx context.Context, ext api.Extractor) ([]api.SummaryEntry, Stats, error) {
	logger := p.logger.With("vendor", ext.Name())
	stats := Stats{Vendor: ext.Name()}

	q := ext.Query()
	if p.cfg.MaxResults > 0 {
		q.MaxResults = p.cfg.MaxResults
	}
	logger.Info("retrieving messages", "query", q.Q, "start", p.cfg.Start, "end", p.cfg.End)

	msgs, err := p.retriever.Retrieve(ctx, retriever.Request{
		Query:      q.Q,
		Start:      p.cfg.Start,
		End:        p.cfg.End,
		MaxResults: q.MaxResults,
	})
	if err != nil {
		return nil, stats, fmt.Errorf("retrieving messages: %w", err)
	}
	stats.Retrieved = len(msgs)
	logger.Info("retrieved messages", "count", len(msgs))

	entries := make([]api.SummaryEntry, 0, len(msgs))
	for i, raw := range msgs {
		if raw == nil {
			logger.Error("retrieved an empty message, skipping", "index", i)
			stats.Failed++
			continue
		}
		msgLogger := logger.With("message_id", raw.ID)

		msg, res, err := p.extract(ext, raw)
		if err != nil {
			msgLogger.Error("failed to extract message, skipping", "error", err)
			stats.Failed++
			continue
		}
		if res == nil {
			msgLogger.Info("message is not a receipt, skipping")
			stats.Ignored++
			continue
		}

		entry := api.SummaryEntry{
			MessageID:    raw.ID,
			ImporterName: ext.Name(),
			Metadata:     *res,
			Files:        api.KindsFor(p.cfg.Artifacts, msg.HasText()).Files(res.Filename),
		}
		if err := p.writer.Write(ctx, &entry, msg, ext); err != nil {
			return nil, stats, fmt.Errorf("writing artifacts for message %s: %w", raw.ID, err)
		}

		msgLogger.Info("extracted receipt",
			"amount", res.Amount,
			"date", res.Date.Format(time.DateTime),
			"merchant", res.VendorName,
		)
		stats.Extracted++
		entries = append(entries, entry)
	}

	logger.Info("finished vendor",
		"extracted", stats.Extracted,
		"ignored", stats.Ignored,
		"failed", stats.Failed,
	)
	return entries, stats, nil
}

// extract normalizes raw and runs the extractor on it. A nil result with a nil error
// means the extractor declined the message.
func (p *Pipeline) extract(ext api.Extractor, raw *api.RawMessage) (*api.NormalizedMessage, *api.ExtractionResult, error) {
	msg, err := mimetree.Normalize(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("normalizing message: %w", err)
	}

	res, err := safeExtract(ext, msg)
	if err != nil {
		return nil, nil, err
	}
	if res == nil {
		return msg, nil, nil
	}
	if res.Amount == "" {
		return nil, nil, fmt.Errorf("extractor returned an empty amount")
	}
	if res.Filename == "" {
		return nil, nil, fmt.Errorf("extractor returned an empty filename")
	}
	return msg, res, nil
}

func safeExtract(ext api.Extractor, msg *api.NormalizedMessage) (res *api.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return ext.Extract(msg), nil
}
