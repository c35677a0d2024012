package stream

import (
	"context"
	"iter"
	"sync"
)

type iterResult struct {
	value any
	done  bool
	err   error
}

// Iterator consumes a readable stream from another goroutine. The stream's
// event loop must be running while Next is called.
type Iterator struct {
	s       *Stream
	release func()

	// Loop-side state.
	waiter   chan iterResult
	finished bool
	removers []func()

	// term is closed once the iteration completed; err is set before.
	term      chan struct{}
	err       error
	closeOnce sync.Once
}

// Iterator returns an iterator over the stream's chunks. It must be called
// on the loop goroutine (or before the loop runs); the loop is kept alive
// until the iteration completes or Close is called.
func (s *Stream) Iterator() *Iterator {
	it := &Iterator{s: s, release: s.loop.Ref(), term: make(chan struct{})}
	if s.r == nil {
		it.finish(ErrNotReadable)
		return it
	}
	wake := func(...any) { it.poll() }
	it.removers = append(it.removers,
		s.On(EventReadable, wake),
		s.emitter.On(EventEnd, func(...any) { it.finish(nil) }),
		s.emitter.On(EventError, func(args ...any) { it.finish(argError(args)) }),
		s.emitter.On(EventClose, func(...any) {
			if it.finished {
				return
			}
			err := s.errored
			if err == nil && !s.ReadableEnded() {
				err = ErrPrematureClose
			}
			it.finish(err)
		}),
	)
	return it
}

// Next returns the next chunk. ok is false once the stream ended; err is
// the stream's error if it failed.
func (it *Iterator) Next(ctx context.Context) (value any, ok bool, err error) {
	select {
	case <-it.term:
		return nil, false, it.err
	default:
	}
	ch := make(chan iterResult, 1)
	it.s.loop.Post(func() {
		if it.waiter != nil {
			ch <- iterResult{err: errConcurrentNext}
			return
		}
		it.waiter = ch
		it.poll()
	})
	select {
	case r := <-ch:
		return r.value, !r.done, r.err
	case <-it.term:
		// The loop may have gone idle before the request was posted.
		select {
		case r := <-ch:
			return r.value, !r.done, r.err
		default:
			return nil, false, it.err
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close stops the iteration early and destroys the stream without an error.
// Next then reports the end of the iteration with a nil error; other
// observers of the stream see it close before "end".
func (it *Iterator) Close() {
	it.closeOnce.Do(func() {
		it.s.loop.Post(func() {
			if !it.finished {
				it.s.Destroy(nil)
				it.finish(nil)
			}
			it.release()
		})
	})
}

// All returns a range-over-func sequence of the stream's chunks. Breaking
// out of the loop destroys the stream.
func (it *Iterator) All(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		defer it.Close()
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// poll answers the waiting Next call if a chunk or a terminal state is
// available.
func (it *Iterator) poll() {
	if it.waiter == nil {
		return
	}
	if it.finished {
		it.answer(iterResult{done: true, err: it.err})
		return
	}
	if v := it.s.Read(); v != nil {
		it.answer(iterResult{value: v})
		return
	}
	if it.s.ReadableEnded() {
		it.finish(nil)
	}
}

func (it *Iterator) answer(r iterResult) {
	w := it.waiter
	it.waiter = nil
	w <- r
}

func (it *Iterator) finish(err error) {
	if it.finished {
		return
	}
	it.finished = true
	it.err = err
	close(it.term)
	for _, remove := range it.removers {
		remove()
	}
	it.removers = nil
	it.release()
	if it.waiter != nil {
		it.answer(iterResult{done: true, err: err})
	}
}
