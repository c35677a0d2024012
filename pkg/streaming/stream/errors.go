package stream

import (
	"errors"
	"fmt"
)

// Usage errors. They are delivered through the operation's callback and an
// "error" event, and leave the stream usable.
var (
	// ErrWriteAfterEnd is reported by writes issued after End.
	ErrWriteAfterEnd = errors.New("stream: write after end")

	// ErrPushAfterEOF is reported by pushes issued after the EOF sentinel.
	ErrPushAfterEOF = errors.New("stream: push after EOF")

	// ErrUnshiftAfterEnd is reported by Unshift after "end" was emitted.
	ErrUnshiftAfterEnd = errors.New("stream: unshift after end event")

	// ErrNullValue is reported when nil is written or unshifted.
	ErrNullValue = errors.New("stream: nil values are not allowed")

	// ErrInvalidChunk is reported when a byte-mode stream receives a chunk
	// that is neither []byte nor string.
	ErrInvalidChunk = errors.New("stream: chunk must be []byte or string")

	// ErrDestroyed is reported by operations on a destroyed stream.
	ErrDestroyed = errors.New("stream: destroyed")

	// ErrMultipleCallback is reported when a hook completes more than once.
	ErrMultipleCallback = errors.New("stream: callback called multiple times")

	// ErrAlreadyFinished is reported by End after "finish" was emitted.
	ErrAlreadyFinished = errors.New("stream: already finished")

	// ErrNotImplemented is reported by writes to a stream without a sink.
	ErrNotImplemented = errors.New("stream: hook not implemented")

	// ErrPrematureClose is reported when a stream closed before the sides
	// being waited on completed.
	ErrPrematureClose = errors.New("stream: premature close")

	// ErrNotReadable and ErrNotWritable are returned by pipe and adapter
	// helpers given a stream without the required side.
	ErrNotReadable = errors.New("stream: not readable")
	ErrNotWritable = errors.New("stream: not writable")
)

var errConcurrentNext = errors.New("stream: concurrent Next calls on one iterator")

// HookPanicError reports a hook that panicked instead of completing.
type HookPanicError struct {
	Hook  string
	Value any
}

func (e *HookPanicError) Error() string {
	return fmt.Sprintf("stream: %s hook panicked: %v", e.Hook, e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *HookPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
