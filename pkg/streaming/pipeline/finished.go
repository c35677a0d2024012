package pipeline

import "github.com/vnykmshr/streamflow/pkg/streaming/stream"

// ErrPrematureClose is reported when a stream closes before the sides being
// waited for completed.
var ErrPrematureClose = stream.ErrPrematureClose

// FinishedOptions selects the sides Finished waits for. A nil field means
// "the side, if the stream has one".
type FinishedOptions struct {
	Readable *bool
	Writable *bool
}

// Bool returns a pointer to v, for FinishedOptions.
func Bool(v bool) *bool { return &v }

// Finished calls cb exactly once, when s is no longer usable: every side
// being waited for completed ("end" for the readable side, "finish" for the
// writable side), or the stream failed, or it closed prematurely.
//
// The returned detach removes the listeners Finished added. cb is not called
// after detach. It must be called on the stream's loop goroutine.
func Finished(s *stream.Stream, opts FinishedOptions, cb func(err error)) (detach func()) {
	readable := s.IsReadable()
	if opts.Readable != nil {
		readable = readable && *opts.Readable
	}
	writable := s.IsWritable()
	if opts.Writable != nil {
		writable = writable && *opts.Writable
	}

	var (
		called   bool
		removers []func()
	)
	detach = func() {
		called = true
		for _, remove := range removers {
			remove()
		}
		removers = nil
	}
	callback := func(err error) {
		if called {
			return
		}
		called = true
		cb(err)
	}

	readableDone := !readable || s.ReadableEnded()
	writableDone := !writable || s.WritableFinished()

	onClose := func() {
		switch {
		case s.Errored() != nil:
			callback(s.Errored())
		case !readableDone || !writableDone:
			callback(ErrPrematureClose)
		default:
			callback(nil)
		}
	}

	removers = append(removers,
		s.OnError(callback),
		s.OnClose(onClose),
	)
	if readable {
		removers = append(removers, s.OnEnd(func() {
			readableDone = true
			if writableDone {
				callback(nil)
			}
		}))
	}
	if writable {
		removers = append(removers, s.OnFinish(func() {
			writableDone = true
			if readableDone {
				callback(nil)
			}
		}))
	}

	loop := s.Loop()
	switch {
	case s.Closed():
		loop.NextTick(onClose)
	case s.Errored() != nil:
		err := s.Errored()
		loop.NextTick(func() { callback(err) })
	case readableDone && writableDone:
		loop.NextTick(func() { callback(nil) })
	}
	return detach
}

// FinishedAsync is Finished returning a channel that receives the result.
func FinishedAsync(s *stream.Stream, opts FinishedOptions) <-chan error {
	result := make(chan error, 1)
	Finished(s, opts, func(err error) {
		result <- err
		close(result)
	})
	return result
}
