package stream

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/metrics"
)

func TestWriteReturnsFalseAtHighWaterMark(t *testing.T) {
	loop := eventloop.New()
	var pending []func(error)
	cfg := DefaultConfig()
	cfg.HighWaterMark = 4
	w := NewWritableWithConfig(loop, SinkFunc(func(_ *Stream, _ Chunk, done func(error)) {
		pending = append(pending, done)
	}), cfg)

	drains := 0
	w.OnDrain(func() { drains++ })

	testutil.AssertEqual(t, w.Write("ab"), true)
	testutil.AssertEqual(t, w.Write("cd"), false)
	testutil.AssertEqual(t, w.NeedDrain(), true)
	testutil.AssertEqual(t, w.WritableLength(), 4)

	testutil.Run(t, loop)
	testutil.AssertEqual(t, drains, 0)

	for len(pending) > 0 {
		done := pending[0]
		pending = pending[1:]
		done(nil)
		testutil.Run(t, loop)
	}
	testutil.AssertEqual(t, drains, 1)
	testutil.AssertEqual(t, w.NeedDrain(), false)
	testutil.AssertEqual(t, w.WritableLength(), 0)
}

func TestNoDrainWithoutBackpressure(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, &asyncRecorder{})

	drains := 0
	w.OnDrain(func() { drains++ })
	for i := 0; i < 5; i++ {
		testutil.AssertEqual(t, w.Write("x"), true)
	}
	testutil.Run(t, loop)
	testutil.AssertEqual(t, drains, 0)
}

func TestOversizedWriteIsFIFO(t *testing.T) {
	loop := eventloop.New()
	cfg := DefaultConfig()
	cfg.HighWaterMark = 10

	var firstDone bool
	var order []string
	var sawSecondAfterFirst bool
	w := NewWritableWithConfig(loop, SinkFunc(func(s *Stream, c Chunk, done func(error)) {
		if string(c.Bytes()) == "second" {
			sawSecondAfterFirst = firstDone
		}
		s.Loop().Post(func() {
			if string(c.Bytes()) != "second" {
				firstDone = true
			}
			done(nil)
		})
	}), cfg)

	ok := w.WriteWith(WriteRequest{
		Chunk:    "twelve bytes",
		Callback: func(error) { order = append(order, "first") },
	})
	testutil.AssertEqual(t, ok, false)
	w.WriteWith(WriteRequest{
		Chunk:    "second",
		Callback: func(error) { order = append(order, "second") },
	})

	testutil.Run(t, loop)
	testutil.AssertEqual(t, sawSecondAfterFirst, true)
	testutil.AssertDeepEqual(t, order, []string{"first", "second"})
}

func TestCorkBatchesUntilUncork(t *testing.T) {
	loop := eventloop.New()
	rec := &recorder{}
	w := NewWritable(loop, rec)

	w.Cork()
	w.Cork()
	w.Write("a")
	w.Write("b")
	w.Write("c")
	testutil.AssertEqual(t, rec.writes, 0)
	testutil.AssertEqual(t, w.WritableCorked(), 2)

	w.Uncork()
	testutil.AssertEqual(t, rec.writes, 0)
	w.Uncork()
	testutil.AssertEqual(t, rec.writes, 3)
	testutil.AssertDeepEqual(t, rec.chunks, items("a", "b", "c"))
	testutil.Run(t, loop)
}

func TestUncorkUsesWritev(t *testing.T) {
	loop := eventloop.New()
	rec := &batchRecorder{}
	w := NewWritable(loop, rec)

	var calls int
	w.Cork()
	for _, c := range []string{"a", "b", "c"} {
		w.WriteWith(WriteRequest{Chunk: c, Callback: func(err error) {
			testutil.AssertNoError(t, err)
			calls++
		}})
	}
	w.Uncork()
	testutil.Run(t, loop)

	testutil.AssertEqual(t, rec.writes, 0)
	testutil.AssertDeepEqual(t, rec.batches, [][]any{items("a", "b", "c")})
	testutil.AssertEqual(t, calls, 3)
}

func TestEndCorkedFlushes(t *testing.T) {
	loop := eventloop.New()
	rec := &recorder{}
	w := NewWritable(loop, rec)

	finishes := 0
	w.OnFinish(func() { finishes++ })
	w.Cork()
	w.Write("a")
	w.EndWith(WriteRequest{Chunk: "b"})
	testutil.Run(t, loop)

	testutil.AssertDeepEqual(t, rec.chunks, items("a", "b"))
	testutil.AssertEqual(t, finishes, 1)
	testutil.AssertEqual(t, w.WritableFinished(), true)
}

type finalSink struct {
	recorder
	finals int
	err    error
}

func (f *finalSink) Final(s *Stream, done func(error)) {
	f.finals++
	s.Loop().Post(func() { done(f.err) })
}

func TestFinalRunsBeforeFinish(t *testing.T) {
	loop := eventloop.New()
	sink := &finalSink{}
	w := NewWritable(loop, sink)

	var events []string
	w.On(EventPrefinish, func(...any) { events = append(events, "prefinish") })
	w.OnFinish(func() {
		testutil.AssertEqual(t, sink.finals, 1)
		events = append(events, "finish")
	})
	w.OnClose(func() { events = append(events, "close") })

	var endErr error
	endCalled := false
	w.Write("x")
	w.EndWith(WriteRequest{Callback: func(err error) {
		endCalled = true
		endErr = err
	}})
	testutil.Run(t, loop)

	testutil.AssertEqual(t, endCalled, true)
	testutil.AssertNoError(t, endErr)
	testutil.AssertDeepEqual(t, events, []string{"prefinish", "finish", "close"})
}

func TestFinalError(t *testing.T) {
	loop := eventloop.New()
	boom := errors.New("flush failed")
	w := NewWritable(loop, &finalSink{err: boom})

	var emitted, endErr error
	w.OnError(func(err error) { emitted = err })
	finished := false
	w.OnFinish(func() { finished = true })
	w.EndWith(WriteRequest{Callback: func(err error) { endErr = err }})
	testutil.Run(t, loop)

	testutil.AssertErrorIs(t, emitted, boom)
	testutil.AssertErrorIs(t, endErr, boom)
	testutil.AssertEqual(t, finished, false)
	testutil.AssertEqual(t, w.Destroyed(), false)
}

func TestWriteAfterEnd(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, &recorder{})

	var errs []error
	w.OnError(func(err error) { errs = append(errs, err) })
	w.End()

	var cbErr error
	ok := w.WriteWith(WriteRequest{Chunk: "late", Callback: func(err error) { cbErr = err }})
	testutil.AssertEqual(t, ok, false)
	testutil.Run(t, loop)

	testutil.AssertErrorIs(t, cbErr, ErrWriteAfterEnd)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrWriteAfterEnd)
}

func TestWriteAfterEndStillFinishes(t *testing.T) {
	loop := eventloop.New()
	rec := &asyncRecorder{}
	w := NewWritable(loop, rec)

	var errs []error
	finishes, closes := 0, 0
	w.OnError(func(err error) { errs = append(errs, err) })
	w.OnFinish(func() { finishes++ })
	w.OnClose(func() { closes++ })

	w.Write("a")
	w.End()
	w.Write("late")
	testutil.Run(t, loop)

	testutil.AssertEqual(t, rec.writes, 1)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrWriteAfterEnd)
	testutil.AssertEqual(t, finishes, 1)
	testutil.AssertEqual(t, closes, 1)
	testutil.AssertNoError(t, w.Errored())
}

func TestEndAfterFinish(t *testing.T) {
	loop := eventloop.New()
	cfg := DefaultConfig()
	cfg.AutoDestroy = false
	w := NewWritableWithConfig(loop, &recorder{}, cfg)
	w.End()
	testutil.Run(t, loop)

	var got error
	w.EndWith(WriteRequest{Callback: func(err error) { got = err }})
	testutil.Run(t, loop)
	testutil.AssertErrorIs(t, got, ErrAlreadyFinished)
}

func TestWriteErrorKeepsFailing(t *testing.T) {
	loop := eventloop.New()
	boom := errors.New("disk full")
	w := NewWritable(loop, SinkFunc(func(s *Stream, _ Chunk, done func(error)) {
		s.Loop().Post(func() { done(boom) })
	}))

	var emitted []error
	w.OnError(func(err error) { emitted = append(emitted, err) })

	var first, queued, later error
	w.WriteWith(WriteRequest{Chunk: "a", Callback: func(err error) { first = err }})
	w.WriteWith(WriteRequest{Chunk: "b", Callback: func(err error) { queued = err }})
	testutil.Run(t, loop)

	w.WriteWith(WriteRequest{Chunk: "c", Callback: func(err error) { later = err }})
	testutil.Run(t, loop)

	testutil.AssertErrorIs(t, first, boom)
	testutil.AssertErrorIs(t, queued, boom)
	testutil.AssertErrorIs(t, later, boom)
	testutil.AssertEqual(t, len(emitted), 1)
	testutil.AssertErrorIs(t, w.Errored(), boom)
	testutil.AssertEqual(t, w.Destroyed(), false)
}

func TestUnhandledWriteErrorFailsLoop(t *testing.T) {
	loop := eventloop.New()
	boom := errors.New("boom")
	w := NewWritable(loop, SinkFunc(func(_ *Stream, _ Chunk, done func(error)) { done(boom) }))
	w.Write("x")

	err := testutil.RunErr(t, loop)
	var ue *eventloop.UnhandledError
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want *eventloop.UnhandledError", err)
	}
	testutil.AssertErrorIs(t, err, boom)
}

func TestSinkPanic(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, SinkFunc(func(*Stream, Chunk, func(error)) { panic("kaboom") }))

	var got error
	w.OnError(func(err error) { got = err })
	w.Write("x")
	testutil.Run(t, loop)

	var hp *HookPanicError
	if !errors.As(got, &hp) {
		t.Fatalf("got %v, want *HookPanicError", got)
	}
	testutil.AssertEqual(t, hp.Hook, "write")
	testutil.AssertEqual(t, hp.Value, any("kaboom"))
}

func TestDoubleWriteCallback(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, SinkFunc(func(_ *Stream, _ Chunk, done func(error)) {
		done(nil)
		done(nil)
	}))

	var got error
	w.OnError(func(err error) { got = err })
	w.Write("x")
	testutil.Run(t, loop)
	testutil.AssertErrorIs(t, got, ErrMultipleCallback)
}

func TestWriteValidation(t *testing.T) {
	tests := []struct {
		name  string
		chunk any
		want  error
	}{
		{"nil", nil, ErrNullValue},
		{"number in byte mode", 42, ErrInvalidChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := eventloop.New()
			w := NewWritable(loop, &recorder{})
			w.OnError(func(error) {})

			var got error
			w.WriteWith(WriteRequest{Chunk: tt.chunk, Callback: func(err error) { got = err }})
			testutil.Run(t, loop)
			testutil.AssertErrorIs(t, got, tt.want)
		})
	}
}

func TestWriteEncodings(t *testing.T) {
	loop := eventloop.New()
	rec := &recorder{}
	w := NewWritable(loop, rec)

	w.WriteWith(WriteRequest{Chunk: "6869", Encoding: "hex"})
	testutil.AssertNoError(t, w.SetDefaultEncoding("base64"))
	w.Write("aGk=")
	testutil.Run(t, loop)
	testutil.AssertDeepEqual(t, rec.chunks, items("hi", "hi"))
}

func TestDecodeStringsOff(t *testing.T) {
	loop := eventloop.New()
	cfg := DefaultConfig()
	cfg.DecodeStrings = false
	var got Chunk
	w := NewWritableWithConfig(loop, SinkFunc(func(_ *Stream, c Chunk, done func(error)) {
		got = c
		done(nil)
	}), cfg)

	w.WriteWith(WriteRequest{Chunk: "hi", Encoding: "latin1"})
	testutil.Run(t, loop)
	testutil.AssertEqual(t, got.Data, any("hi"))
	testutil.AssertEqual(t, string(got.Encoding), "latin1")
}

func TestDestroyIsIdempotent(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, &recorder{})

	errs, closes := 0, 0
	w.OnError(func(error) { errs++ })
	w.OnClose(func() { closes++ })

	boom := errors.New("boom")
	w.Destroy(boom)
	w.Destroy(boom)
	w.Destroy(nil)
	testutil.Run(t, loop)

	testutil.AssertEqual(t, errs, 1)
	testutil.AssertEqual(t, closes, 1)
	testutil.AssertEqual(t, w.Destroyed(), true)
	testutil.AssertEqual(t, w.Closed(), true)
	testutil.AssertErrorIs(t, w.Errored(), boom)
}

func TestDestroyWithoutErrorEmitsOnlyClose(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)

	closes := 0
	r.OnClose(func() { closes++ })
	r.Destroy(nil)
	r.Destroy(nil)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, closes, 1)
	testutil.AssertNoError(t, r.Errored())
}

func TestDestroyFailsBufferedWrites(t *testing.T) {
	loop := eventloop.New()
	var inflight func(error)
	w := NewWritable(loop, SinkFunc(func(_ *Stream, _ Chunk, done func(error)) { inflight = done }))

	var first, second error
	firstCalled := false
	w.WriteWith(WriteRequest{Chunk: "a", Callback: func(err error) { firstCalled, first = true, err }})
	w.WriteWith(WriteRequest{Chunk: "b", Callback: func(err error) { second = err }})
	w.Destroy(nil)
	testutil.Run(t, loop)
	testutil.AssertNoError(t, second)

	inflight(nil)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, firstCalled, true)
	testutil.AssertNoError(t, first)
	testutil.AssertErrorIs(t, second, ErrDestroyed)

	var late error
	w.WriteWith(WriteRequest{Chunk: "c", Callback: func(err error) { late = err }})
	testutil.Run(t, loop)
	testutil.AssertErrorIs(t, late, ErrDestroyed)
}

type destroyHook struct {
	calls int
	got   error
}

func (d *destroyHook) Write(_ *Stream, _ Chunk, done func(error)) { done(nil) }

func (d *destroyHook) Destroy(_ *Stream, err error, done func(error)) {
	d.calls++
	d.got = err
	done(err)
}

func TestDestroyerHook(t *testing.T) {
	loop := eventloop.New()
	hook := &destroyHook{}
	w := NewWritable(loop, hook)
	w.OnError(func(error) {})

	boom := errors.New("boom")
	w.Destroy(boom)
	w.Destroy(nil)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, hook.calls, 1)
	testutil.AssertErrorIs(t, hook.got, boom)
}

func TestWritableMetrics(t *testing.T) {
	loop := eventloop.New()
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.Name = "sink"
	cfg.HighWaterMark = 2
	cfg.Metrics = reg
	w := NewWritableWithConfig(loop, &asyncRecorder{}, cfg)

	w.Write("abc")
	w.Write("d")
	testutil.Run(t, loop)

	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.ChunksWritten.WithLabelValues("sink")), 2.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.BytesWritten.WithLabelValues("sink")), 4.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.BackpressureEvents.WithLabelValues("sink")), 2.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.DrainEvents.WithLabelValues("sink")), 1.0)
}

func TestConfigValidate(t *testing.T) {
	testutil.AssertNoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.HighWaterMark = -1
	testutil.AssertError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultEncoding = "klingon"
	testutil.AssertError(t, cfg.Validate())
}
