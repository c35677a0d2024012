package sources

import (
	"context"
	"reflect"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

func objectConfig() stream.Config {
	cfg := stream.DefaultConfig()
	cfg.ObjectMode = true
	return cfg
}

// isNil reports whether v is nil, including typed nils such as a nil
// pointer, map, slice, func or channel held in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// sliceSource pushes the elements of a slice until the buffer is full.
type sliceSource[T any] struct {
	slice []T
	index int
}

func (src *sliceSource[T]) Pull(s *stream.Stream, _ int) {
	for src.index < len(src.slice) {
		v := src.slice[src.index]
		src.index++
		if isNil(v) {
			continue
		}
		if !s.Push(v) {
			return
		}
	}
	s.Push(nil)
}

// FromSlice creates an object-mode readable that yields the elements of
// slice in order and then ends. Nil elements are skipped, since nil marks
// the end of a stream.
func FromSlice[T any](loop *eventloop.Loop, slice []T) *stream.Stream {
	return FromSliceWithConfig(loop, slice, objectConfig())
}

// FromSliceWithConfig is FromSlice with the specified configuration.
func FromSliceWithConfig[T any](loop *eventloop.Loop, slice []T, config stream.Config) *stream.Stream {
	if config.Name == "" {
		config.Name = "slice"
	}
	return stream.NewReadableWithConfig(loop, &sliceSource[T]{slice: slice}, config)
}

// channelSource receives from a channel on a background goroutine, one value
// per pull.
type channelSource[T any] struct {
	ch     <-chan T
	ctx    context.Context
	cancel context.CancelFunc
}

type received[T any] struct {
	value T
	ok    bool
}

func (src *channelSource[T]) Pull(s *stream.Stream, _ int) {
	eventloop.Async(s.Loop(), func() (received[T], error) {
		select {
		case v, ok := <-src.ch:
			return received[T]{value: v, ok: ok}, nil
		case <-src.ctx.Done():
			return received[T]{}, src.ctx.Err()
		}
	}, func(r received[T], err error) {
		switch {
		case err != nil:
			// Destroyed while waiting.
		case !r.ok:
			s.Push(nil)
		case isNil(r.value):
			src.Pull(s, 0)
		default:
			s.Push(r.value)
		}
	})
}

func (src *channelSource[T]) Destroy(_ *stream.Stream, err error, done func(error)) {
	src.cancel()
	done(err)
}

// FromChannel creates an object-mode readable that yields the values received
// from ch and ends when ch is closed. Receiving stops when the stream is
// destroyed.
func FromChannel[T any](loop *eventloop.Loop, ch <-chan T) *stream.Stream {
	return FromChannelWithConfig(loop, ch, objectConfig())
}

// FromChannelWithConfig is FromChannel with the specified configuration.
func FromChannelWithConfig[T any](loop *eventloop.Loop, ch <-chan T, config stream.Config) *stream.Stream {
	if config.Name == "" {
		config.Name = "channel"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return stream.NewReadableWithConfig(loop, &channelSource[T]{ch: ch, ctx: ctx, cancel: cancel}, config)
}

// generatorSource calls a function for every value.
type generatorSource[T any] struct {
	generator func() T
	limit     int
	count     int
}

func (src *generatorSource[T]) Pull(s *stream.Stream, _ int) {
	for src.limit <= 0 || src.count < src.limit {
		src.count++
		v := src.generator()
		if isNil(v) {
			continue
		}
		if !s.Push(v) {
			return
		}
	}
	s.Push(nil)
}

// Generate creates an object-mode readable whose values come from generator.
// The stream ends after limit calls; a limit of 0 never ends. Nil results
// are skipped but still count towards the limit.
func Generate[T any](loop *eventloop.Loop, generator func() T, limit int) *stream.Stream {
	cfg := objectConfig()
	cfg.Name = "generate"
	return stream.NewReadableWithConfig(loop, &generatorSource[T]{generator: generator, limit: limit}, cfg)
}
