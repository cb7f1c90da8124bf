package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// queued pairs a record with the handler chain that must write it, so
// attributes bound through WithAttrs survive the hop to the workers.
type queued struct {
	handler slog.Handler
	rec     slog.Record
}

// asyncState is shared between an AsyncHandler and every handler derived
// from it.
type asyncState struct {
	queue   chan queued
	workers sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// AsyncHandler hands records to a small worker pool through a bounded
// buffer so request paths never block on stdout. Records are dropped, and
// counted, when the buffer is full.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler starts workers draining a buffer of the given size.
func NewAsyncHandler(inner slog.Handler, buffer, workers int) *AsyncHandler {
	st := &asyncState{queue: make(chan queued, buffer)}
	for range workers {
		st.workers.Add(1)
		go func() {
			defer st.workers.Done()
			for q := range st.queue {
				_ = q.handler.Handle(context.Background(), q.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, state: st}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

// Handle enqueues the record. Drops if the buffer is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.state.queue <- queued{handler: h.inner, rec: rec.Clone()}:
	default:
		h.state.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same buffer and workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler sharing the same buffer and workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close stops accepting records and waits for the buffer to drain. Safe to
// call more than once.
func (h *AsyncHandler) Close() {
	h.state.once.Do(func() {
		close(h.state.queue)
		h.state.workers.Wait()
	})
}
