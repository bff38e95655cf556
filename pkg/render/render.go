// Package render turns HTML into PDF documents with wkhtmltopdf and concatenates
// documents with pdfcpu.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// Default page size. Receipts are laid out for a wide browser window rather than
// a paper format.
const (
	DefaultWidth  = "1000px"
	DefaultHeight = "1300px"
	DefaultBinary = "wkhtmltopdf"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command with stdin attached and returns its combined output.
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

type execExecutor struct{}

func (execExecutor) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// Config holds configuration for the renderer.
type Config struct {
	// Binary is the wkhtmltopdf executable. Defaults to DefaultBinary on PATH.
	Binary string
}

// Renderer implements api.Renderer by piping HTML into wkhtmltopdf.
type Renderer struct {
	binary   string
	executor CommandExecutor
	logger   *slog.Logger
}

// New creates a renderer that runs the real executable.
func New(cfg Config, logger *slog.Logger) *Renderer {
	return NewWithExecutor(cfg, execExecutor{}, logger)
}

// NewWithExecutor creates a renderer with a custom command executor.
func NewWithExecutor(cfg Config, executor CommandExecutor, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}

	return &Renderer{
		binary:   cfg.Binary,
		executor: executor,
		logger:   logger,
	}
}

// Render writes html as a PDF document at outPath.
func (r *Renderer) Render(ctx context.Context, html, outPath string, opts api.RenderOptions) error {
	args := Args(outPath, opts)

	r.logger.Debug("running renderer", "binary", r.binary, "args", args)
	output, err := r.executor.Run(ctx, strings.NewReader(html), r.binary, args...)
	if err != nil {
		return fmt.Errorf("running %s: %s: %w", r.binary, bytes.TrimSpace(output), err)
	}
	return nil
}

// Args builds the wkhtmltopdf arguments that read HTML from stdin and write outPath.
func Args(outPath string, opts api.RenderOptions) []string {
	width, height := opts.Width, opts.Height
	if width == "" {
		width = DefaultWidth
	}
	if height == "" {
		height = DefaultHeight
	}

	return []string{
		"--quiet",
		"--encoding", "utf-8",
		"--page-width", width,
		"--page-height", height,
		"--margin-top", "0",
		"--margin-bottom", "0",
		"--margin-left", "0",
		"--margin-right", "0",
		"-", outPath,
	}
}

// Check verifies the executable can be run.
func (r *Renderer) Check(ctx context.Context) error {
	output, err := r.executor.Run(ctx, nil, r.binary, "--version")
	if err != nil {
		return fmt.Errorf("checking %s: %w", r.binary, err)
	}
	r.logger.Debug("found renderer", "version", string(bytes.TrimSpace(output)))
	return nil
}
