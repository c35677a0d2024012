package adapters

import (
	"context"
	"errors"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// ErrLocked is returned when a stream was already handed to a reader or
// writer adapter.
var ErrLocked = errors.New("adapters: stream is locked")

// WebReader is a pull-based source. Read blocks until a value is available;
// done reports the end of the sequence.
type WebReader interface {
	Read(ctx context.Context) (value any, done bool, err error)
}

// WebWriter is a push-based destination. Write blocks until the value was
// accepted; Close flushes and ends it.
type WebWriter interface {
	Write(ctx context.Context, value any) error
	Close(ctx context.Context) error
}

// Canceler is implemented by readers that can be told to stop early.
type Canceler interface {
	Cancel(ctx context.Context, reason error) error
}

// Aborter is implemented by writers that can be torn down without flushing.
type Aborter interface {
	Abort(ctx context.Context, reason error) error
}

type lockKey struct {
	s        *stream.Stream
	readable bool
}

var locks sync.Map

// lock claims one side of s. The claim is dropped when s closes; a closed
// stream is never locked.
func lock(s *stream.Stream, readable bool) error {
	if s.Closed() {
		return nil
	}
	key := lockKey{s: s, readable: readable}
	if _, loaded := locks.LoadOrStore(key, struct{}{}); loaded {
		return ErrLocked
	}
	s.OnClose(func() { locks.Delete(key) })
	return nil
}

func objectConfig(name string) stream.Config {
	cfg := stream.DefaultConfig()
	cfg.ObjectMode = true
	cfg.Name = name
	return cfg
}

// webSource pulls one value per read request.
type webSource struct {
	r      WebReader
	ctx    context.Context
	cancel context.CancelFunc
}

// FromWeb creates an object-mode readable stream that reads from r.
func FromWeb(loop *eventloop.Loop, r WebReader) *stream.Stream {
	return FromWebWithConfig(loop, r, objectConfig("web-reader"))
}

// FromWebWithConfig is FromWeb with an explicit stream configuration.
func FromWebWithConfig(loop *eventloop.Loop, r WebReader, config stream.Config) *stream.Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return stream.NewReadableWithConfig(loop, &webSource{r: r, ctx: ctx, cancel: cancel}, config)
}

type readResult struct {
	value any
	done  bool
}

func (w *webSource) Pull(s *stream.Stream, _ int) {
	eventloop.Async(s.Loop(), func() (readResult, error) {
		v, done, err := w.r.Read(w.ctx)
		return readResult{value: v, done: done}, err
	}, func(res readResult, err error) {
		switch {
		case s.Destroyed():
		case err != nil:
			s.Destroy(err)
		case res.done:
			w.cancel()
			s.Push(nil)
		case res.value == nil:
			// Nothing to hand over; ask again.
			w.Pull(s, 0)
		default:
			s.Push(res.value)
		}
	})
}

func (w *webSource) Destroy(s *stream.Stream, err error, done func(error)) {
	w.cancel()
	c, ok := w.r.(Canceler)
	if !ok {
		done(err)
		return
	}
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, c.Cancel(context.Background(), err)
	}, func(_ struct{}, cerr error) {
		if err == nil {
			err = cerr
		}
		done(err)
	})
}

// webReader reads a stream through its iterator.
type webReader struct {
	it *stream.Iterator
}

// ToWeb returns a WebReader over the readable side of s. It fails with
// stream.ErrNotReadable for write-only streams and ErrLocked if s was
// already handed out.
func ToWeb(s *stream.Stream) (WebReader, error) {
	if !s.IsReadable() {
		return nil, stream.ErrNotReadable
	}
	if err := lock(s, true); err != nil {
		return nil, err
	}
	return &webReader{it: s.Iterator()}, nil
}

func (r *webReader) Read(ctx context.Context) (any, bool, error) {
	v, ok, err := r.it.Next(ctx)
	return v, !ok, err
}

// Cancel stops reading and destroys the stream.
func (r *webReader) Cancel(context.Context, error) error {
	r.it.Close()
	return nil
}

// webSink forwards each chunk to a WebWriter.
type webSink struct {
	w      WebWriter
	ctx    context.Context
	cancel context.CancelFunc
}

// FromWebWriter creates an object-mode writable stream that writes into w.
// Ending the stream closes w; destroying it aborts w when w supports that.
func FromWebWriter(loop *eventloop.Loop, w WebWriter) *stream.Stream {
	return FromWebWriterWithConfig(loop, w, objectConfig("web-writer"))
}

// FromWebWriterWithConfig is FromWebWriter with an explicit stream
// configuration.
func FromWebWriterWithConfig(loop *eventloop.Loop, w WebWriter, config stream.Config) *stream.Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return stream.NewWritableWithConfig(loop, &webSink{w: w, ctx: ctx, cancel: cancel}, config)
}

func (w *webSink) Write(s *stream.Stream, c stream.Chunk, done func(error)) {
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, w.w.Write(w.ctx, c.Data)
	}, func(_ struct{}, err error) {
		done(err)
	})
}

func (w *webSink) Final(s *stream.Stream, done func(error)) {
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, w.w.Close(w.ctx)
	}, func(_ struct{}, err error) {
		done(err)
	})
}

func (w *webSink) Destroy(s *stream.Stream, err error, done func(error)) {
	w.cancel()
	a, ok := w.w.(Aborter)
	if !ok || s.WritableFinished() {
		done(err)
		return
	}
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, a.Abort(context.Background(), err)
	}, func(_ struct{}, aerr error) {
		if err == nil {
			err = aerr
		}
		done(err)
	})
}

// webWriter writes into a stream from outside the loop.
type webWriter struct {
	s       *stream.Stream
	release func()
	once    sync.Once
}

// ToWebWriter returns a WebWriter over the writable side of s. Each Write
// returns once the stream's sink accepted the value. The loop is kept alive
// until Close or Abort.
func ToWebWriter(s *stream.Stream) (WebWriter, error) {
	if !s.IsWritable() {
		return nil, stream.ErrNotWritable
	}
	if err := lock(s, false); err != nil {
		return nil, err
	}
	return &webWriter{s: s, release: s.Loop().Ref()}, nil
}

func (w *webWriter) Write(ctx context.Context, v any) error {
	return w.call(ctx, func(cb func(error)) {
		w.s.WriteWith(stream.WriteRequest{Chunk: v, Callback: cb})
	})
}

func (w *webWriter) Close(ctx context.Context) error {
	defer w.done()
	return w.call(ctx, func(cb func(error)) {
		w.s.EndWith(stream.WriteRequest{Callback: cb})
	})
}

// Abort destroys the stream with reason.
func (w *webWriter) Abort(ctx context.Context, reason error) error {
	defer w.done()
	return w.call(ctx, func(cb func(error)) {
		w.s.Destroy(reason)
		cb(nil)
	})
}

// call runs op on the loop and waits for the callback it is given.
func (w *webWriter) call(ctx context.Context, op func(cb func(error))) error {
	ch := make(chan error, 1)
	w.s.Loop().Post(func() {
		op(func(err error) {
			select {
			case ch <- err:
			default:
			}
		})
	})
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *webWriter) done() {
	w.once.Do(func() {
		w.s.Loop().Post(w.release)
	})
}
