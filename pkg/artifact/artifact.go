// Package artifact writes the per-message artifact files.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// DefaultRetryDelay is the pause between attempts of a failed artifact write.
const DefaultRetryDelay = 2 * time.Second

// Record is the structured-record artifact: the summary entry plus everything needed to
// replay extraction offline.
type Record struct {
	api.SummaryEntry
	NormalizedMessage *api.NormalizedMessage `json:"normalizedMessage"`
	RawMessage        *api.RawMessage        `json:"rawMessage"`
}

// Message rebuilds the normalized message with its raw provider message attached.
func (r *Record) Message() *api.NormalizedMessage {
	if r.NormalizedMessage == nil {
		return nil
	}
	msg := *r.NormalizedMessage
	msg.RawMessage = r.RawMessage
	return &msg
}

// LoadRecord reads a structured-record artifact.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", path, err)
	}
	return &rec, nil
}

// Config holds configuration for the artifact writer.
type Config struct {
	// OutDir is the directory artifacts are written to.
	OutDir string
	// Attempts is the number of tries per artifact. Defaults to 1.
	Attempts uint
	// RetryDelay is the pause between attempts. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
	// RenderOptions are passed to the renderer for document artifacts.
	RenderOptions api.RenderOptions
}

// Writer emits the artifact files recorded in a summary entry.
type Writer struct {
	cfg      Config
	renderer api.Renderer
	logger   *slog.Logger
}

// New creates an artifact writer. renderer may be nil when the document kind is never
// configured.
func New(cfg Config, renderer api.Renderer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Writer{
		cfg:      cfg,
		renderer: renderer,
		logger:   logger,
	}
}

// Path returns the output path of an artifact file name.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.cfg.OutDir, name)
}

// Write writes exactly the kinds present in entry.Files. Each artifact is written and
// retried independently; a failure never removes artifacts already written. Files are
// overwritten, so writing the same entry twice yields identical output.
func (w *Writer) Write(ctx context.Context, entry *api.SummaryEntry, msg *api.NormalizedMessage, ext api.Extractor) error {
	var errs []error
	for _, kind := range api.AllArtifactKinds {
		name, ok := entry.File(kind)
		if !ok {
			continue
		}
		path := w.Path(name)

		err := w.withRetry(ctx, kind, path, func() error {
			return w.writeKind(ctx, kind, path, entry, msg, ext)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("writing %s artifact %s: %w", kind, name, err))
			continue
		}
		w.logger.Debug("wrote artifact", "kind", kind, "path", path)
	}
	return errors.Join(errs...)
}

func (w *Writer) writeKind(ctx context.Context, kind api.ArtifactKind, path string, entry *api.SummaryEntry, msg *api.NormalizedMessage, ext api.Extractor) error {
	switch kind {
	case api.ArtifactJSON:
		rec := Record{
			SummaryEntry:      *entry,
			NormalizedMessage: msg,
			RawMessage:        msg.RawMessage,
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	case api.ArtifactHTML:
		return os.WriteFile(path, []byte(msg.HTML), 0o644)
	case api.ArtifactText:
		if !msg.HasText() {
			return fmt.Errorf("message has no plaintext body")
		}
		return os.WriteFile(path, []byte(msg.Text), 0o644)
	case api.ArtifactPDF:
		if w.renderer == nil {
			return fmt.Errorf("no renderer configured")
		}
		w.logger.Info("rendering document", "path", path)
		return w.renderer.Render(ctx, api.RenderHTML(ext, msg), path, w.cfg.RenderOptions)
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
}

func (w *Writer) withRetry(ctx context.Context, kind api.ArtifactKind, path string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(w.cfg.Attempts),
		retry.Delay(w.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			w.logger.Warn("artifact write failed, retrying",
				"kind", kind,
				"path", path,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
}
