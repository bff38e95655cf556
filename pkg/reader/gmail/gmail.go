// Package gmail implements an api.MailSource backed by the Gmail API.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/receiptor/pkg/api"
)

const (
	userID = "me"

	// DefaultRequestsPerSecond keeps concurrent message gets inside the per-user quota.
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 10
)

// Config holds configuration for the Gmail source.
type Config struct {
	// RequestsPerSecond paces list and get calls. Defaults to DefaultRequestsPerSecond.
	RequestsPerSecond float64
	// Burst is the limiter burst size. Defaults to DefaultBurst.
	Burst int
}

// Source lists and fetches messages of the authenticated user.
type Source struct {
	client  *gmail.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Gmail source using an authorized HTTP client.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Source, error) {
	client, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewWithService(client, cfg, logger), nil
}

// NewWithService creates a Gmail source over an existing service.
func NewWithService(client *gmail.Service, cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	return &Source{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// List returns one page of message ids matching the request.
func (s *Source) List(ctx context.Context, req api.ListRequest) (*api.ListPage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := BuildQuery(req.Query, req.After, req.Before)
	call := s.client.Users.Messages.List(userID).Q(q).Context(ctx)
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}
	if req.MaxResults > 0 {
		call = call.MaxResults(req.MaxResults)
	}

	s.logger.Debug("listing messages", "q", q, "page_token", req.PageToken)
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("listing gmail messages: %w", err)
	}

	page := &api.ListPage{
		IDs:           make([]string, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	return page, nil
}

// Get fetches the full message, including the MIME tree and bodies.
func (s *Source) Get(ctx context.Context, id string) (*api.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msg, err := s.client.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting gmail message: %w", err)
	}
	return ConvertMessage(msg), nil
}

// BuildQuery appends the date range to a search fragment as epoch-second bounds.
// Zero times are left out.
func BuildQuery(q string, after, before time.Time) string {
	terms := make([]string, 0, 3)
	if q = strings.TrimSpace(q); q != "" {
		terms = append(terms, q)
	}
	if !after.IsZero() {
		terms = append(terms, fmt.Sprintf("after:%d", after.Unix()))
	}
	if !before.IsZero() {
		terms = append(terms, fmt.Sprintf("before:%d", before.Unix()))
	}
	return strings.Join(terms, " ")
}

// ConvertMessage copies a Gmail message into the provider-neutral shape.
func ConvertMessage(msg *gmail.Message) *api.RawMessage {
	return &api.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Snippet:      msg.Snippet,
		InternalDate: msg.InternalDate,
		Payload:      convertPart(msg.Payload),
	}
}

func convertPart(p *gmail.MessagePart) *api.Part {
	if p == nil {
		return nil
	}

	part := &api.Part{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, api.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Body = &api.PartBody{Size: p.Body.Size, Data: p.Body.Data}
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}
