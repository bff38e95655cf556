// Package buffered provides a buffered writer base for batch writes.
package buffered

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultBatchSize is the default number of items to buffer before flushing.
const DefaultBatchSize = 50

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher[T any] func(ctx context.Context, items []T) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of items to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers items and flushes them in batches. A failed flush stops the writer.
type Writer[T any] struct {
	buffer  []T
	mu      sync.Mutex
	flusher Flusher[T]
	config  Config
	logger  *slog.Logger
	flushed int
}

// New creates a new buffered writer with the given flusher function.
func New[T any](flusher Flusher[T], cfg Config, logger *slog.Logger) *Writer[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer[T]{
		buffer:  make([]T, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes items from in until it is closed, flushing every BatchSize items,
// every FlushInterval, and once more at the end.
func (w *Writer[T]) Write(ctx context.Context, in <-chan T) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("buffered writer stopping", "pending", w.BufferLen())
			return ctx.Err()
		case <-ticker.C:
			if err := w.flush(ctx); err != nil {
				return fmt.Errorf("flushing on interval: %w", err)
			}
		case item, ok := <-in:
			if !ok {
				if err := w.flush(ctx); err != nil {
					return fmt.Errorf("flushing remaining buffer: %w", err)
				}
				return nil
			}
			if err := w.add(ctx, item); err != nil {
				return fmt.Errorf("flushing full batch: %w", err)
			}
		}
	}
}

func (w *Writer[T]) add(ctx context.Context, item T) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, item)
	full := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if full {
		return w.flush(ctx)
	}
	return nil
}

func (w *Writer[T]) flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	toFlush := make([]T, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	if err := w.flusher(ctx, toFlush); err != nil {
		return err
	}

	w.mu.Lock()
	w.flushed += len(toFlush)
	w.mu.Unlock()
	w.logger.Debug("flushed batch", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered items.
func (w *Writer[T]) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Flushed returns the number of items written so far.
func (w *Writer[T]) Flushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}

// Feed sends items on a new channel and closes it, stopping early if ctx ends.
func Feed[T any](ctx context.Context, items []T) <-chan T {
	ch := make(chan T)
	go func() {
		defer close(ch)
		for _, item := range items {
			select {
			case ch <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
