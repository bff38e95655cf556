package render

import (
	"context"
	"fmt"
	"log/slog"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger concatenates PDF documents.
type Merger struct {
	conf   *model.Configuration
	logger *slog.Logger
}

// NewMerger creates a merger using the default pdfcpu configuration.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &Merger{conf: conf, logger: logger}
}

// Merge writes inFiles, in order, into outFile, replacing it if present.
func (m *Merger) Merge(ctx context.Context, inFiles []string, outFile string) error {
	if len(inFiles) == 0 {
		return fmt.Errorf("merging documents: no input files")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.logger.Debug("merging documents", "count", len(inFiles), "out", outFile)
	if err := pdfapi.MergeCreateFile(inFiles, outFile, false, m.conf); err != nil {
		return fmt.Errorf("merging documents: %w", err)
	}
	return nil
}
