package pipeline

import (
	"errors"
	"fmt"

	gferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// ErrAborted is reported when a composed stream is destroyed while its
// inner pipeline is still running.
var ErrAborted = errors.New("operation aborted")

// Compose chains streams into a single duplex stream: writes go into the
// first stream and reads come out of the last one. The inner streams are
// connected with Run; a failure anywhere destroys the composite.
//
// A single stream is returned as is.
func Compose(streams ...*stream.Stream) (*stream.Stream, error) {
	switch len(streams) {
	case 0:
		return nil, fmt.Errorf("%w: compose needs at least one stream", gferrors.ErrMissingArgs)
	case 1:
		if streams[0] == nil {
			return nil, gferrors.NewValidationError(module, "streams[0]", nil, "cannot be nil")
		}
		return streams[0], nil
	}
	if err := validate(streams); err != nil {
		return nil, err
	}

	head, tail := streams[0], streams[len(streams)-1]
	c := &composite{head: head, tail: tail}

	config := stream.DefaultConfig()
	config.Name = "compose"
	config.WritableObjectMode = head.WritableObjectMode()
	config.ReadableObjectMode = tail.ReadableObjectMode()
	config.Metrics = tail.Metrics()
	// Strings were already encoded by the caller's write into the composite.
	config.DecodeStrings = false

	loop := head.Loop()
	writable, readable := head.IsWritable(), tail.IsReadable()
	switch {
	case writable && readable:
		c.outer = stream.NewDuplexWithConfig(loop, c, c, config)
	case writable:
		c.outer = stream.NewWritableWithConfig(loop, c, config)
	default:
		c.outer = stream.NewReadableWithConfig(loop, c, config)
	}

	if writable {
		head.OnDrain(func() {
			if cb := c.onDrain; cb != nil {
				c.onDrain = nil
				cb(nil)
			}
		})
		if tail.IsWritable() {
			tail.OnFinish(c.finished)
		}
	}
	if readable {
		tail.OnReadable(func() {
			if c.wantRead {
				c.wantRead = false
				c.Pull(c.outer, 0)
			}
		})
		tail.OnEnd(func() { c.outer.Push(nil) })
	}

	Run(c.pipelineDone, streams...)
	return c.outer, nil
}

// composite drives the outer stream from the inner pipeline's ends.
type composite struct {
	head, tail *stream.Stream
	outer      *stream.Stream

	onDrain  func(error)
	onFinish func(error)
	wantRead bool

	// onClose is the outer Destroyer's completion, waiting for the inner
	// pipeline to wind down.
	onClose func(error)
	done    bool
}

// Write forwards chunk into the head, completing once the head accepts
// more data.
func (c *composite) Write(_ *stream.Stream, chunk stream.Chunk, done func(error)) {
	if c.head.WriteWith(stream.WriteRequest{Chunk: chunk.Data, Encoding: chunk.Encoding}) {
		done(nil)
		return
	}
	c.onDrain = done
}

// Final ends the head and completes when the tail finished.
func (c *composite) Final(_ *stream.Stream, done func(error)) {
	c.onFinish = done
	c.head.End()
	if !c.tail.IsWritable() && c.done {
		c.finished()
	}
}

func (c *composite) finished() {
	if cb := c.onFinish; cb != nil {
		c.onFinish = nil
		cb(nil)
	}
}

// Pull moves whatever the tail has buffered into the outer stream.
func (c *composite) Pull(s *stream.Stream, _ int) {
	for {
		v := c.tail.Read()
		if v == nil {
			c.wantRead = true
			return
		}
		if !s.Push(v) {
			return
		}
	}
}

// Destroy tears the inner pipeline down with the outer stream.
func (c *composite) Destroy(s *stream.Stream, err error, done func(error)) {
	c.onDrain, c.onFinish, c.wantRead = nil, nil, false
	if c.done {
		done(err)
		return
	}
	c.onClose = done
	if err == nil && !completed(s) {
		err = ErrAborted
	}
	if err != nil {
		c.tail.Destroy(err)
	}
}

func (c *composite) pipelineDone(err error) {
	c.done = true
	if !c.tail.IsWritable() {
		c.finished()
	}
	if cb := c.onClose; cb != nil {
		c.onClose = nil
		cb(err)
		return
	}
	if err != nil {
		c.outer.Destroy(err)
	}
}

// completed reports whether every side of s ended cleanly, so the inner
// pipeline is about to complete rather than being cut short.
func completed(s *stream.Stream) bool {
	if s.IsReadable() && !s.ReadableEnded() {
		return false
	}
	if s.IsWritable() && !s.WritableFinished() {
		return false
	}
	return true
}
