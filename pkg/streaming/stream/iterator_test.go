package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
)

// runLoop runs loop in the background and returns a channel that yields
// Run's result.
func runLoop(loop *eventloop.Loop) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(context.Background()) }()
	return errc
}

func TestIteratorAll(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, &sliceSource{items: items(1, 2, 3)}, objectConfig())
	it := r.Iterator()
	errc := runLoop(loop)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var got []any
	for v, err := range it.All(ctx) {
		testutil.AssertNoError(t, err)
		got = append(got, v)
	}
	testutil.AssertNoError(t, <-errc)
	testutil.AssertDeepEqual(t, got, items(1, 2, 3))
	testutil.AssertEqual(t, r.ReadableEnded(), true)

	v, ok, err := it.Next(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, v, nil)
}

func TestIteratorBreakDestroys(t *testing.T) {
	loop := eventloop.New()
	n := 0
	r := NewReadableWithConfig(loop, SourceFunc(func(s *Stream, _ int) {
		n++
		s.Push(n)
	}), objectConfig())
	it := r.Iterator()
	errc := runLoop(loop)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var got []any
	for v, err := range it.All(ctx) {
		testutil.AssertNoError(t, err)
		got = append(got, v)
		if len(got) == 3 {
			break
		}
	}
	testutil.AssertNoError(t, <-errc)
	testutil.AssertDeepEqual(t, got, items(1, 2, 3))
	testutil.AssertEqual(t, r.Destroyed(), true)
}

func TestIteratorCloseEndsWithoutError(t *testing.T) {
	loop := eventloop.New()
	n := 0
	r := NewReadableWithConfig(loop, SourceFunc(func(s *Stream, _ int) {
		n++
		s.Push(n)
	}), objectConfig())
	it := r.Iterator()
	it.Close()
	testutil.Run(t, loop)

	_, ok, err := it.Next(context.Background())
	testutil.AssertEqual(t, ok, false)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, r.Destroyed(), true)
	testutil.AssertEqual(t, r.ReadableEnded(), false)
}

func TestIteratorReportsError(t *testing.T) {
	loop := eventloop.New()
	boom := errors.New("read failed")
	r := NewReadableWithConfig(loop, SourceFunc(func(s *Stream, _ int) {
		s.Destroy(boom)
	}), objectConfig())
	it := r.Iterator()
	errc := runLoop(loop)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	_, ok, err := it.Next(ctx)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertErrorIs(t, err, boom)
	it.Close()
	testutil.AssertNoError(t, <-errc)
}

func TestIteratorPrematureClose(t *testing.T) {
	loop := eventloop.New()
	r := NewReadableWithConfig(loop, nil, objectConfig())
	it := r.Iterator()
	r.Destroy(nil)
	errc := runLoop(loop)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	_, ok, err := it.Next(ctx)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertErrorIs(t, err, ErrPrematureClose)
	testutil.AssertNoError(t, <-errc)
}

func TestIteratorNotReadable(t *testing.T) {
	loop := eventloop.New()
	w := NewWritable(loop, &recorder{})
	it := w.Iterator()

	_, ok, err := it.Next(context.Background())
	testutil.AssertEqual(t, ok, false)
	testutil.AssertErrorIs(t, err, ErrNotReadable)
	testutil.Run(t, loop)
}
