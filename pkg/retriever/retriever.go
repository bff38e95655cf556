// Package retriever lists and fetches the raw messages matching a vendor query.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// DefaultFetchConcurrency bounds concurrent Get calls when Config leaves it unset.
const DefaultFetchConcurrency = 8

// Config holds configuration for the retriever.
type Config struct {
	// FetchConcurrency is the number of message fetches in flight at once.
	// Defaults to DefaultFetchConcurrency.
	FetchConcurrency int
}

// Request describes one retrieval.
type Request struct {
	Query string
	// Start and End bound the message date range, inclusive.
	Start time.Time
	End   time.Time
	// MaxResults stops listing after the first page when > 0.
	MaxResults int64
}

// Retriever pages through a MailSource and fetches every listed message.
type Retriever struct {
	source      api.MailSource
	concurrency int
	logger      *slog.Logger
}

// New creates a retriever over source.
func New(source api.MailSource, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}

	return &Retriever{
		source:      source,
		concurrency: cfg.FetchConcurrency,
		logger:      logger,
	}
}

// Retrieve returns every message matching req in listing order. Any list or get
// failure aborts the retrieval.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]*api.RawMessage, error) {
	ids, err := r.ListIDs(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Fetch(ctx, ids)
}

// ListIDs follows continuation tokens until the source reports no further pages.
func (r *Retriever) ListIDs(ctx context.Context, req Request) ([]string, error) {
	var ids []string
	var pageToken string
	for {
		if pageToken != "" {
			r.logger.Debug("requesting next page", "page_token", pageToken)
		}

		page, err := r.source.List(ctx, api.ListRequest{
			Query:      req.Query,
			After:      req.Start,
			Before:     req.End,
			PageToken:  pageToken,
			MaxResults: req.MaxResults,
		})
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}

		ids = append(ids, page.IDs...)
		r.logger.Debug("listed messages", "count", len(page.IDs))

		if req.MaxResults > 0 {
			r.logger.Debug("stopping after first page", "max_results", req.MaxResults)
			break
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	r.logger.Info("listed all messages", "count", len(ids))
	return ids, nil
}

// Fetch gets every message concurrently. Results keep the order of ids regardless of
// completion order.
func (r *Retriever) Fetch(ctx context.Context, ids []string) ([]*api.RawMessage, error) {
	messages := make([]*api.RawMessage, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := r.source.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("getting message %s: %w", id, err)
			}
			messages[i] = msg
			r.logger.Debug("downloaded message", "message_id", id, "index", i+1, "total", len(ids))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return messages, nil
}
