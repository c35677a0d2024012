package stream

import "github.com/vnykmshr/streamflow/pkg/buffer"

// Chunk is a single written value together with its encoding. In byte mode
// Data is []byte (Encoding is buffer.Raw) or, when DecodeStrings is off, a
// string in Encoding. In object mode Data is whatever was written.
type Chunk struct {
	Data     any
	Encoding buffer.Encoding
}

// Bytes returns the chunk as bytes. Strings are converted using the chunk's
// encoding; other values yield nil.
func (c Chunk) Bytes() []byte {
	switch v := c.Data.(type) {
	case []byte:
		return v
	case string:
		b, err := buffer.From(v, c.Encoding)
		if err != nil {
			return []byte(v)
		}
		return b
	default:
		return nil
	}
}

// Source produces data for the readable side. Pull is called when the
// buffer wants more data; it must eventually call s.Push zero or more times,
// then either return (more will follow later) or push nil to end the stream.
// A source may complete asynchronously, for example through eventloop.Async.
type Source interface {
	Pull(s *Stream, size int)
}

// Sink consumes data from the writable side. Write must call done exactly
// once. No second Write is issued until done was called.
type Sink interface {
	Write(s *Stream, chunk Chunk, done func(err error))
}

// BatchSink is implemented by sinks that can write several buffered chunks
// at once. Writev is used whenever more than one chunk is buffered at
// dispatch time.
type BatchSink interface {
	Writev(s *Stream, chunks []Chunk, done func(err error))
}

// Finalizer is implemented by sinks that need to run after the last write
// completed and before "finish" is emitted.
type Finalizer interface {
	Final(s *Stream, done func(err error))
}

// Destroyer is implemented by hooks that release resources on destroy.
// done receives the error to report, usually err itself.
type Destroyer interface {
	Destroy(s *Stream, err error, done func(err error))
}

// Transformer converts written chunks into readable output. done takes an
// error and an optional value to push; it must be called exactly once, and
// Transform is never called again before it was.
type Transformer interface {
	Transform(s *Stream, chunk Chunk, done func(err error, out any))
}

// Flusher is implemented by transformers that emit trailing output after the
// writable side ended and before the readable side closes.
type Flusher interface {
	Flush(s *Stream, done func(err error, out any))
}

// SourceFunc adapts a function to Source.
type SourceFunc func(s *Stream, size int)

// Pull calls f(s, size).
func (f SourceFunc) Pull(s *Stream, size int) { f(s, size) }

// SinkFunc adapts a function to Sink.
type SinkFunc func(s *Stream, chunk Chunk, done func(err error))

// Write calls f(s, chunk, done).
func (f SinkFunc) Write(s *Stream, chunk Chunk, done func(err error)) { f(s, chunk, done) }

// TransformFunc adapts a function to Transformer.
type TransformFunc func(s *Stream, chunk Chunk, done func(err error, out any))

// Transform calls f(s, chunk, done).
func (f TransformFunc) Transform(s *Stream, chunk Chunk, done func(err error, out any)) {
	f(s, chunk, done)
}
