package transforms

import (
	"fmt"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

func objectConfig(name string) stream.Config {
	cfg := stream.DefaultConfig()
	cfg.ObjectMode = true
	cfg.Name = name
	return cfg
}

func value[T any](c stream.Chunk) (T, error) {
	v, ok := c.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", stream.ErrInvalidChunk, c.Data, zero)
	}
	return v, nil
}

// Map creates an object-mode transform that replaces each chunk with
// fn(chunk). A nil result is dropped.
func Map[T, U any](loop *eventloop.Loop, fn func(T) U) *stream.Stream {
	return MapWithConfig(loop, fn, objectConfig("map"))
}

// MapWithConfig is Map with an explicit stream configuration.
func MapWithConfig[T, U any](loop *eventloop.Loop, fn func(T) U, config stream.Config) *stream.Stream {
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		v, err := value[T](c)
		if err != nil {
			done(err, nil)
			return
		}
		done(nil, fn(v))
	}), config)
}

// Filter creates an object-mode transform that forwards only chunks for
// which keep returns true.
func Filter[T any](loop *eventloop.Loop, keep func(T) bool) *stream.Stream {
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		v, err := value[T](c)
		if err != nil {
			done(err, nil)
			return
		}
		if keep(v) {
			done(nil, v)
			return
		}
		done(nil, nil)
	}), objectConfig("filter"))
}

// Peek creates an object-mode transform that calls fn with each chunk and
// forwards it unchanged.
func Peek[T any](loop *eventloop.Loop, fn func(T)) *stream.Stream {
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		v, err := value[T](c)
		if err != nil {
			done(err, nil)
			return
		}
		fn(v)
		done(nil, v)
	}), objectConfig("peek"))
}

// Skip creates an object-mode transform that drops the first n chunks.
func Skip(loop *eventloop.Loop, n int) *stream.Stream {
	skipped := 0
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		if skipped < n {
			skipped++
			done(nil, nil)
			return
		}
		done(nil, c.Data)
	}), objectConfig("skip"))
}

// Limit creates an object-mode transform whose readable side ends after n
// chunks. Later input is accepted and discarded so upstream can finish.
func Limit(loop *eventloop.Loop, n int) *stream.Stream {
	taken := 0
	ended := false
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(s *stream.Stream, c stream.Chunk, done func(error, any)) {
		if taken >= n {
			if !ended {
				ended = true
				s.Push(nil)
			}
			done(nil, nil)
			return
		}
		taken++
		if taken < n {
			done(nil, c.Data)
			return
		}
		ended = true
		s.Push(c.Data)
		s.Push(nil)
		done(nil, nil)
	}), objectConfig("limit"))
}

// Distinct creates an object-mode transform that forwards each distinct
// value once.
func Distinct[T comparable](loop *eventloop.Loop) *stream.Stream {
	seen := make(map[T]struct{})
	return stream.NewTransformWithConfig(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		v, err := value[T](c)
		if err != nil {
			done(err, nil)
			return
		}
		if _, dup := seen[v]; dup {
			done(nil, nil)
			return
		}
		seen[v] = struct{}{}
		done(nil, v)
	}), objectConfig("distinct"))
}
