// Package mbox implements an api.MailSource over a local mbox archive, such as a
// Google Takeout export, so receipts can be processed without API access.
package mbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/mimetree"
)

func init() {
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// DefaultPageSize is the listing page size when a request sets no MaxResults.
const DefaultPageSize = 100

// ErrMessageNotFound is returned by Get for an unknown id.
var ErrMessageNotFound = errors.New("message not found in archive")

type entry struct {
	raw *api.RawMessage
	doc *document
}

// Source serves messages of an mbox archive loaded into memory.
type Source struct {
	messages []*entry
	byID     map[string]*entry
	logger   *slog.Logger
}

// Open loads every message of the archive at path.
func Open(path string, logger *slog.Logger) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mbox: %w", err)
	}
	defer file.Close()

	return Load(file, path, logger)
}

// Load reads an mbox stream. name is used in logs only.
func Load(r io.Reader, name string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Source{
		byID:   make(map[string]*entry),
		logger: logger,
	}

	reader := mboxlib.NewReader(r)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("reading mbox message %d: %w", idx, err)
		}

		e, err := parseMessage(raw)
		if err != nil {
			logger.Warn("skipping unparseable message", "index", idx, "error", err)
			continue
		}
		if _, dup := s.byID[e.raw.ID]; dup {
			logger.Debug("skipping duplicate message", "index", idx, "message_id", e.raw.ID)
			continue
		}

		s.messages = append(s.messages, e)
		s.byID[e.raw.ID] = e
	}

	logger.Info("loaded mbox archive", "path", name, "count", len(s.messages))
	return s, nil
}

// Len returns the number of loaded messages.
func (s *Source) Len() int {
	return len(s.messages)
}

// List returns the ids of matching messages in archive order. Page tokens are
// offsets into the filtered result.
func (s *Source) List(ctx context.Context, req api.ListRequest) (*api.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matcher, err := ParseQuery(req.Query)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range s.messages {
		date := time.UnixMilli(e.raw.InternalDate)
		if !req.After.IsZero() && date.Before(req.After) {
			continue
		}
		if !req.Before.IsZero() && !date.Before(req.Before) {
			continue
		}
		if !matcher.match(e.doc) {
			continue
		}
		ids = append(ids, e.raw.ID)
	}

	offset := 0
	if req.PageToken != "" {
		if offset, err = strconv.Atoi(req.PageToken); err != nil || offset < 0 || offset > len(ids) {
			return nil, fmt.Errorf("invalid page token %q", req.PageToken)
		}
	}
	size := DefaultPageSize
	if req.MaxResults > 0 {
		size = int(req.MaxResults)
	}
	end := min(offset+size, len(ids))

	page := &api.ListPage{IDs: ids[offset:end]}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// Get returns a loaded message.
func (s *Source) Get(ctx context.Context, id string) (*api.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return e.raw, nil
}

func parseMessage(raw []byte) (*entry, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	payload, err := buildPart(ent, "")
	if err != nil {
		return nil, err
	}

	h := mail.Header{Header: ent.Header}
	msg := &api.RawMessage{
		ID:      messageID(h, raw),
		Payload: payload,
	}
	if date, err := h.Date(); err == nil {
		msg.InternalDate = date.UnixMilli()
	}

	subject, _ := h.Subject()
	doc := &document{
		from:    strings.ToLower(headerText(ent.Header, "From")),
		to:      strings.ToLower(headerText(ent.Header, "To")),
		subject: strings.ToLower(subject),
	}
	var body []string
	for _, t := range []string{mimetree.TypePlain, mimetree.TypeHTML} {
		if part, ok := mimetree.FindPart(payload, t); ok {
			if text, err := mimetree.DecodeBody(part); err == nil {
				body = append(body, text)
			}
		}
	}
	doc.body = strings.ToLower(strings.Join(body, "\n"))

	return &entry{raw: msg, doc: doc}, nil
}

// buildPart converts an entity into a part tree shaped like the Gmail API's: part
// ids are dotted child indexes, multipart nodes carry an empty body and leaf bodies
// are transfer-decoded, charset-converted and base64url encoded.
func buildPart(ent *message.Entity, id string) (*api.Part, error) {
	mediaType, _, err := ent.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = mimetree.TypePlain
	}

	part := &api.Part{
		PartID:   id,
		MimeType: mediaType,
		Headers:  headers(ent.Header),
	}
	if _, params, err := ent.Header.ContentDisposition(); err == nil {
		part.Filename = params["filename"]
	}

	if mr := ent.MultipartReader(); mr != nil {
		part.Body = &api.PartBody{}
		for i := 0; ; i++ {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && (child == nil || !message.IsUnknownCharset(err)) {
				return nil, fmt.Errorf("reading part %s: %w", childID(id, i), err)
			}

			childPart, err := buildPart(child, childID(id, i))
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, childPart)
		}
		return part, nil
	}

	body, err := io.ReadAll(ent.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of part %q: %w", id, err)
	}
	part.Body = mimetree.EncodeBody(body)
	return part, nil
}

func childID(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i)
	}
	return parent + "." + strconv.Itoa(i)
}

func headers(h message.Header) []api.Header {
	var out []api.Header
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out = append(out, api.Header{Name: fields.Key(), Value: value})
	}
	return out
}

func headerText(h message.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

// messageID derives a stable hex id from the Message-Id header, or from the raw
// message when the header is missing.
func messageID(h mail.Header, raw []byte) string {
	seed := []byte(strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>"))
	if len(seed) == 0 {
		seed = raw
	}
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:8])
}
