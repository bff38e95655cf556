// Package mimetree locates parts inside a message's MIME tree and builds the
// normalized view that extractors consume.
package mimetree

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// Content types resolved during normalization.
const (
	TypePlain = "text/plain"
	TypeHTML  = "text/html"
)

// NoSubject is used when a message carries no Subject header.
const NoSubject = "(no subject)"

// ErrNoHTMLPart is returned by Normalize when the message has no HTML body.
var ErrNoHTMLPart = errors.New("message has no text/html part")

// FindPart returns the first part of the given content type in depth-first
// pre-order: the root, then each child in listed order, recursing into the child's
// own parts before moving on to its next sibling.
func FindPart(root *api.Part, contentType string) (*api.Part, bool) {
	if root == nil {
		return nil, false
	}

	stack := []*api.Part{root}
	for len(stack) > 0 {
		part := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if part == nil {
			continue
		}
		if matchesType(part.MimeType, contentType) {
			return part, true
		}
		// Push children in reverse so the first child is visited next.
		for i := len(part.Parts) - 1; i >= 0; i-- {
			stack = append(stack, part.Parts[i])
		}
	}
	return nil, false
}

func matchesType(partType, want string) bool {
	mediaType, _, err := mime.ParseMediaType(partType)
	if err != nil {
		mediaType = strings.TrimSpace(partType)
	}
	return strings.EqualFold(mediaType, want)
}

// DecodeBody returns the decoded content of a part. A part without body data decodes
// to "".
func DecodeBody(part *api.Part) (string, error) {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return "", nil
	}
	data := part.Body.Data

	// Providers are inconsistent about padding.
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", fmt.Errorf("decoding part %q body: %w", part.PartID, err)
		}
	}
	return string(b), nil
}

// EncodeBody is the inverse of DecodeBody, used by sources that build parts themselves.
func EncodeBody(content []byte) *api.PartBody {
	return &api.PartBody{
		Size: int64(len(content)),
		Data: base64.URLEncoding.EncodeToString(content),
	}
}

// Normalize derives the NormalizedMessage of a raw message. Plaintext is optional;
// a missing HTML part yields ErrNoHTMLPart.
func Normalize(raw *api.RawMessage) (*api.NormalizedMessage, error) {
	if raw == nil || raw.Payload == nil {
		return nil, fmt.Errorf("message has no payload")
	}

	msg := &api.NormalizedMessage{
		Subject:    raw.Payload.Header("Subject"),
		Date:       time.UnixMilli(raw.InternalDate),
		RawMessage: raw,
	}
	if msg.Subject == "" {
		msg.Subject = NoSubject
	}

	if plain, ok := FindPart(raw.Payload, TypePlain); ok {
		text, err := DecodeBody(plain)
		if err != nil {
			return nil, fmt.Errorf("reading plaintext body: %w", err)
		}
		msg.Text = text
	}

	htmlPart, ok := FindPart(raw.Payload, TypeHTML)
	if !ok {
		return nil, fmt.Errorf("message %s: %w", raw.ID, ErrNoHTMLPart)
	}
	html, err := DecodeBody(htmlPart)
	if err != nil {
		return nil, fmt.Errorf("reading html body: %w", err)
	}
	msg.HTML = html

	return msg, nil
}
