// Package api defines the core interfaces and data structures for receiptor.
package api

import (
	"context"
	"strings"
	"time"
)

// Header is a single MIME header of a message part.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PartBody holds the encoded content of a message part.
type PartBody struct {
	Size int64 `json:"size,omitempty"`
	// Data is base64url encoded, as delivered by the provider.
	Data string `json:"data,omitempty"`
}

// Part is one node of a message's MIME tree.
type Part struct {
	PartID   string    `json:"partId,omitempty"`
	MimeType string    `json:"mimeType"`
	Filename string    `json:"filename,omitempty"`
	Headers  []Header  `json:"headers,omitempty"`
	Body     *PartBody `json:"body,omitempty"`
	Parts    []*Part   `json:"parts,omitempty"`
}

// Header returns the first header value with the given name, or "". Names match
// case-insensitively.
func (p *Part) Header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// RawMessage is a provider message as fetched. It is never mutated after retrieval.
type RawMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId,omitempty"`
	LabelIDs []string `json:"labelIds,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	// InternalDate is the provider receive time in milliseconds since the epoch.
	InternalDate int64 `json:"internalDate"`
	Payload      *Part `json:"payload"`
}

// NormalizedMessage is the extractor-facing view of a RawMessage.
type NormalizedMessage struct {
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	HTML    string    `json:"html"`
	// Text is empty when the message has no plaintext part.
	Text string `json:"text,omitempty"`

	RawMessage *RawMessage `json:"-"`
}

// HasText reports whether the message carried a plaintext body.
func (m *NormalizedMessage) HasText() bool {
	return m.Text != ""
}

// ID returns the provider identifier of the underlying raw message.
func (m *NormalizedMessage) ID() string {
	if m.RawMessage == nil {
		return ""
	}
	return m.RawMessage.ID
}

// ExtractionResult holds the purchase metadata extracted from one message.
type ExtractionResult struct {
	// Filename is the extension-less base name shared by all artifacts of the message.
	Filename string    `json:"filename"`
	Date     time.Time `json:"date"`
	// Amount is the charged total as a decimal string, e.g. "12.34".
	Amount          string `json:"amt"`
	DeliveryAddress string `json:"deliveryAddress,omitempty"`
	VendorName      string `json:"vendorName,omitempty"`
}

// Query narrows provider retrieval for one extractor.
type Query struct {
	// Q is a provider search fragment (sender/subject filter).
	Q string
	// MaxResults caps the listing to a single page when > 0. Used for test runs.
	MaxResults int64
}

// Extractor turns a normalized message into purchase metadata for one vendor.
// Extract must be pure; a nil result means the message is not a receipt for this vendor.
type Extractor interface {
	Name() string
	DisplayName() string
	Query() Query
	Extract(msg *NormalizedMessage) *ExtractionResult
}

// RenderTransformer is implemented by extractors that rewrite the HTML before it is
// rendered into a document.
type RenderTransformer interface {
	TransformForRendering(msg *NormalizedMessage) string
}

// RenderHTML returns the HTML to render for msg, applying the extractor's
// transform when it has one.
func RenderHTML(ext Extractor, msg *NormalizedMessage) string {
	if t, ok := ext.(RenderTransformer); ok {
		return t.TransformForRendering(msg)
	}
	return msg.HTML
}

// ListRequest is one page request against a MailSource.
type ListRequest struct {
	Query      string
	After      time.Time
	Before     time.Time
	PageToken  string
	MaxResults int64
}

// ListPage is one page of message identifiers. NextPageToken is empty on the last page.
type ListPage struct {
	IDs           []string
	NextPageToken string
}

// MailSource is the mail provider boundary.
type MailSource interface {
	List(ctx context.Context, req ListRequest) (*ListPage, error)
	Get(ctx context.Context, id string) (*RawMessage, error)
}

// RenderOptions tunes document rendering. Zero values use renderer defaults.
type RenderOptions struct {
	Width  string
	Height string
}

// Renderer commits an HTML document to outPath in the rendered document format.
type Renderer interface {
	Render(ctx context.Context, html, outPath string, opts RenderOptions) error
}
