package adapters

import (
	"context"
	"sync"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// sliceReader is a WebReader over fixed values.
type sliceReader struct {
	mu       sync.Mutex
	values   []any
	err      error
	canceled error
	cancels  int
}

func (r *sliceReader) Read(ctx context.Context) (any, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		if r.err != nil {
			return nil, false, r.err
		}
		return nil, true, nil
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v, false, ctx.Err()
}

func (r *sliceReader) Cancel(_ context.Context, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	r.canceled = reason
	return nil
}

// recordingWriter is a WebWriter that remembers what it was given.
type recordingWriter struct {
	mu      sync.Mutex
	values  []any
	closed  bool
	aborted error
	failOn  any
}

func (w *recordingWriter) Write(_ context.Context, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOn != nil && v == w.failOn {
		return testutil.ErrSimulated
	}
	w.values = append(w.values, v)
	return nil
}

func (w *recordingWriter) Close(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) Abort(_ context.Context, reason error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = reason
	return nil
}

func (w *recordingWriter) snapshot() ([]any, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]any(nil), w.values...), w.closed, w.aborted
}

// collector is an object-mode sink.
type collector struct{ got []any }

func (c *collector) Write(_ *stream.Stream, chunk stream.Chunk, done func(error)) {
	c.got = append(c.got, chunk.Data)
	done(nil)
}

// runLoop runs loop on its own goroutine until it goes idle.
func runLoop(t *testing.T, loop *eventloop.Loop) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		ctx, cancel := testutil.WithTimeout(t)
		defer cancel()
		errc <- loop.Run(ctx)
	}()
	return errc
}
