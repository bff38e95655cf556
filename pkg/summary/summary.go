// Package summary accumulates summary entries for a download run and persists them
// as the JSON summary file.
package summary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// FileName is the summary file name inside the output directory.
const FileName = "download_summary.json"

// Path returns the summary file path for an output directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Store is an append-only accumulator flushed to disk as a whole. Each run starts
// empty and rewrites the file; entries are never merged with a previous run.
type Store struct {
	filePath string
	entries  []api.SummaryEntry
	mu       sync.Mutex
	logger   *slog.Logger
}

// New creates an empty store that flushes to filePath.
func New(filePath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		filePath: filePath,
		entries:  make([]api.SummaryEntry, 0),
		logger:   logger,
	}
}

// Append adds entries after the ones already held.
func (s *Store) Append(entries ...api.SummaryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.Concat(s.entries, entries)
}

// Entries returns a copy of the accumulated entries in append order.
func (s *Store) Entries() []api.SummaryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Len returns the number of accumulated entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Flush writes every accumulated entry to the summary file, replacing its contents.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}

	s.logger.Info("wrote summary file", "path", s.filePath, "count", len(s.entries))
	return nil
}

// Load reads a summary file written by Flush, including hand-edited exclude flags.
func Load(filePath string) ([]api.SummaryEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading summary file: %w", err)
	}

	var entries []api.SummaryEntry
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding summary file: %w", err)
	}
	return entries, nil
}
