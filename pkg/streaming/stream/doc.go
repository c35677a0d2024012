/*
Package stream implements readable, writable, duplex, transform and
pass-through streams with explicit backpressure.

Core Concepts:

A Stream is a single type with an optional readable side and an optional
writable side. Every stream belongs to an eventloop.Loop and must only be
touched from that loop's goroutine. Notifications such as "end", "finish",
"readable" and "drain" are deferred to a later tick, so a Push or Write call
never re-enters its caller.

  - Readable: producers Push chunks (nil ends the stream); consumers either
    attach a "data" listener (flowing mode) or call Read after "readable"
    (paused mode).
  - Writable: Write returns false once the buffer reaches the high-water
    mark; wait for "drain" before writing more. At most one write is handed
    to the sink at a time and callbacks fire in write order.
  - Duplex: both sides on one stream, with independent lifecycles.
  - Transform: a duplex whose readable output is produced from its writable
    input, one conversion at a time.
  - PassThrough: a transform that forwards chunks unchanged.

Basic Usage:

	loop := eventloop.New()

	src := stream.NewReadable(loop, stream.SourceFunc(func(s *stream.Stream, _ int) {
		s.Push("hello")
		s.Push(nil)
	}))
	dst := stream.NewWritable(loop, stream.SinkFunc(func(s *stream.Stream, c stream.Chunk, done func(error)) {
		fmt.Println(string(c.Bytes()))
		done(nil)
	}))
	src.Pipe(dst)

	if err := loop.Run(context.Background()); err != nil {
		log.Fatal(err)
	}

Hooks:

Concrete streams are built by implementing a subset of the hook interfaces:
Source for the readable side; Sink, BatchSink and Finalizer for the writable
side; Transformer and Flusher for transforms; Destroyer for cleanup. Hooks
may complete asynchronously; use eventloop.Async to run blocking work off
the loop and deliver the result back onto it.

Errors:

Usage errors (ErrWriteAfterEnd, ErrPushAfterEOF, ...) and hook failures are
reported through the operation's callback and a single "error" event; the
stream is left errored but not destroyed. Destroy is the only cancellation
primitive. An "error" event with no listener is never dropped: it fails the
event loop, which returns an *eventloop.UnhandledError from Run.

Object Mode:

In byte mode chunks are []byte (strings are converted) and lengths are
counted in bytes. In object mode any non-nil value is a chunk and each
counts as one.
*/
package stream
