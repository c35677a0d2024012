package stream

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/buffer"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
)

func TestReadableFlowingDeliversInOrder(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, &sliceSource{items: items("a", "b", "c")}, objectConfig())

	var got []any
	ends := 0
	r.OnData(func(chunk any) {
		if ends > 0 {
			t.Fatal("data after end")
		}
		got = append(got, chunk)
	})
	r.OnEnd(func() { ends++ })

	testutil.Run(t, loop)

	testutil.AssertDeepEqual(t, got, items("a", "b", "c"))
	testutil.AssertEqual(t, ends, 1)
	testutil.AssertEqual(t, r.ReadableEnded(), true)
	testutil.AssertEqual(t, r.ReadableLength(), 0)
	testutil.AssertEqual(t, r.Destroyed(), true)
}

func TestReadablePausedModeRead(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)
	r.Push("ab")
	r.Push("cd")
	r.Push(nil)

	var got []string
	ends := 0
	r.OnReadable(func() {
		for v := r.Read(); v != nil; v = r.Read() {
			got = append(got, string(v.([]byte)))
		}
	})
	r.OnEnd(func() { ends++ })

	testutil.AssertEqual(t, r.Flowing(), Paused)
	testutil.Run(t, loop)

	testutil.AssertDeepEqual(t, got, []string{"abcd"})
	testutil.AssertEqual(t, ends, 1)
}

func TestReadNSplitsChunks(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)
	r.Push("hello")
	r.Push(" world")
	r.Push(nil)

	testutil.AssertEqual(t, string(r.ReadN(5).([]byte)), "hello")
	testutil.AssertEqual(t, string(r.ReadN(3).([]byte)), " wo")
	testutil.AssertEqual(t, r.ReadableLength(), 3)
	testutil.AssertEqual(t, string(r.Read().([]byte)), "rld")
	if v := r.ReadN(1); v != nil {
		t.Fatalf("expected nil after draining, got %v", v)
	}

	testutil.Run(t, loop)
	testutil.AssertEqual(t, r.ReadableEnded(), true)
}

func TestReadReturnsNilBeforeData(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)

	if v := r.Read(); v != nil {
		t.Fatalf("got %v, want nil", v)
	}
	testutil.AssertEqual(t, r.ReadableEOF(), false)
	testutil.AssertEqual(t, r.ReadableEnded(), false)
	testutil.Run(t, loop)
}

func TestPushReportsBackpressure(t *testing.T) {
	loop := eventloop.New()
	cfg := objectConfig()
	cfg.HighWaterMark = 2
	r := NewReadableWithConfig(loop, nil, cfg)

	testutil.AssertEqual(t, r.Push(1), true)
	testutil.AssertEqual(t, r.Push(2), false)
	testutil.AssertEqual(t, r.ReadableLength(), 2)
	testutil.AssertEqual(t, r.ReadableHighWaterMark(), 2)
	testutil.Run(t, loop)
}

func TestPushAfterEOF(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())

	var errs []error
	r.OnError(func(err error) { errs = append(errs, err) })
	r.Push(nil)
	testutil.AssertEqual(t, r.Push("late"), false)

	testutil.Run(t, loop)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrPushAfterEOF)
}

func TestPushAfterEOFKeepsBufferedData(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())

	var got []any
	var errs []error
	ends := 0
	r.OnError(func(err error) { errs = append(errs, err) })
	r.OnData(func(c any) { got = append(got, c) })
	r.OnEnd(func() { ends++ })

	r.Push("a")
	r.Push("b")
	r.Push(nil)
	r.Push("late")
	testutil.Run(t, loop)

	testutil.AssertDeepEqual(t, got, items("a", "b"))
	testutil.AssertEqual(t, ends, 1)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrPushAfterEOF)
	testutil.AssertEqual(t, r.Closed(), true)
}

func TestUnshiftPutsChunkFirst(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())
	r.Push("b")
	r.Unshift("a")
	r.Push(nil)

	var got []any
	r.OnData(func(c any) { got = append(got, c) })
	testutil.Run(t, loop)
	testutil.AssertDeepEqual(t, got, items("a", "b"))
}

func TestUnshiftErrors(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())

	var errs []error
	r.OnError(func(err error) { errs = append(errs, err) })
	r.Unshift(nil)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrNullValue)
}

func TestUnshiftAfterEndEvent(t *testing.T) {
	loop := eventloop.New()
	cfg := objectConfig()
	cfg.AutoDestroy = false
	r := NewReadableWithConfig(loop, nil, cfg)

	var errs []error
	r.OnError(func(err error) { errs = append(errs, err) })
	r.OnData(func(any) {})
	r.Push(nil)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, r.ReadableEnded(), true)

	r.Unshift("x")
	testutil.Run(t, loop)
	testutil.AssertEqual(t, len(errs), 1)
	testutil.AssertErrorIs(t, errs[0], ErrUnshiftAfterEnd)
}

func TestPushInvalidChunkInByteMode(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)

	var got error
	r.OnError(func(err error) { got = err })
	testutil.AssertEqual(t, r.Push(42), false)
	testutil.Run(t, loop)
	testutil.AssertErrorIs(t, got, ErrInvalidChunk)
}

func TestFlowModeTransitions(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())

	testutil.AssertEqual(t, r.Flowing(), FlowingUnset)
	r.OnData(func(any) {})
	testutil.AssertEqual(t, r.Flowing(), Flowing)

	pauses, resumes := 0, 0
	r.OnPause(func() { pauses++ })
	r.OnResume(func() { resumes++ })

	r.Pause()
	testutil.AssertEqual(t, r.Flowing(), Paused)
	testutil.AssertEqual(t, r.IsPaused(), true)
	r.Resume()
	testutil.AssertEqual(t, r.Flowing(), Flowing)
	testutil.AssertEqual(t, r.IsPaused(), false)

	testutil.Run(t, loop)
	testutil.AssertEqual(t, pauses, 1)
	testutil.AssertEqual(t, resumes, 1)
}

func TestPausedStreamKeepsDataBuffered(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())
	r.Pause()

	var got []any
	r.OnData(func(c any) { got = append(got, c) })
	r.Push(1)
	r.Push(2)
	testutil.Run(t, loop)
	testutil.AssertEqual(t, len(got), 0)
	testutil.AssertEqual(t, r.ReadableLength(), 2)

	r.Resume()
	testutil.Run(t, loop)
	testutil.AssertDeepEqual(t, got, items(1, 2))
}

func TestRemovingDataListenerResetsFlowing(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())

	remove := r.OnData(func(any) {})
	testutil.Run(t, loop)
	remove()
	testutil.Run(t, loop)
	testutil.AssertEqual(t, r.Flowing(), FlowingUnset)
}

func TestSetEncodingCarriesSplitRunes(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)
	testutil.AssertNoError(t, r.SetEncoding(buffer.UTF8))

	b := []byte("héllo")
	r.Push(b[:2])
	r.Push(b[2:])
	r.Push(nil)

	var sb strings.Builder
	r.OnData(func(c any) { sb.WriteString(c.(string)) })
	testutil.Run(t, loop)
	testutil.AssertEqual(t, sb.String(), "héllo")
	testutil.AssertEqual(t, r.ReadableEncoding(), buffer.UTF8)
}

func TestSetEncodingDecodesBufferedBytes(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)
	r.Push([]byte("hi"))
	testutil.AssertNoError(t, r.SetEncoding(buffer.Hex))
	testutil.AssertEqual(t, r.Read(), any("6869"))
	testutil.Run(t, loop)
}

func TestReadNCountsDecodedCharacters(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, nil)
	testutil.AssertNoError(t, r.SetEncoding(buffer.UTF8))
	r.Push("héllo")
	testutil.AssertEqual(t, r.ReadableLength(), 5)

	got := r.ReadN(2)
	testutil.AssertEqual(t, got, any("hé"))
	testutil.AssertEqual(t, utf8.ValidString(got.(string)), true)
	testutil.AssertEqual(t, r.ReadableLength(), 3)
	testutil.AssertEqual(t, r.ReadN(3), any("llo"))
	testutil.Run(t, loop)
}

func TestSetEncodingUnknown(t *testing.T) {
	r := NewReadable(eventloop.New(), nil)
	testutil.AssertErrorIs(t, r.SetEncoding("klingon"), buffer.ErrUnknownEncoding)
}

func TestSourcePanicIsReported(t *testing.T) {
	loop := eventloop.New()
	r := NewReadable(loop, SourceFunc(func(*Stream, int) { panic("no data") }))

	var got error
	r.OnError(func(err error) { got = err })
	r.OnData(func(any) {})
	testutil.Run(t, loop)

	var hp *HookPanicError
	if !errors.As(got, &hp) {
		t.Fatalf("got %v, want *HookPanicError", got)
	}
	testutil.AssertEqual(t, hp.Hook, "pull")
}

func TestSourcePullsUntilHighWaterMark(t *testing.T) {
	loop := eventloop.New()
	cfg := objectConfig()
	cfg.HighWaterMark = 3
	src := &sliceSource{items: items(1, 2, 3, 4, 5, 6)}
	r := NewReadableWithConfig(loop, src, cfg)

	r.Read()
	testutil.Run(t, loop)
	testutil.AssertEqual(t, r.ReadableLength(), 3)
}

func TestAsyncSource(t *testing.T) {
	loop := eventloop.New()
	n := 0
	r := NewReadableWithConfig(loop, SourceFunc(func(s *Stream, _ int) {
		eventloop.Async(loop, func() (int, error) {
			return n + 1, nil
		}, func(v int, _ error) {
			n = v
			if v > 3 {
				s.Push(nil)
				return
			}
			s.Push(v)
		})
	}), objectConfig())

	var got []any
	r.OnData(func(c any) { got = append(got, c) })
	testutil.Run(t, loop)
	testutil.AssertDeepEqual(t, got, items(1, 2, 3))
}
