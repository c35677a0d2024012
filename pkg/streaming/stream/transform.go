package stream

import "github.com/vnykmshr/streamflow/pkg/eventloop"

// transformPhase is the conversion step's state. At most one conversion is
// in flight; a pull that arrives with nothing to convert is remembered as
// phasePullDeferred and served by the next write.
type transformPhase int

const (
	phaseIdle transformPhase = iota
	phaseTransforming
	phasePullDeferred
	phaseFlushing
)

func (p transformPhase) String() string {
	switch p {
	case phaseTransforming:
		return "transforming"
	case phasePullDeferred:
		return "pull-deferred"
	case phaseFlushing:
		return "flushing"
	default:
		return "idle"
	}
}

// TransformState holds the single pending write awaiting conversion.
type TransformState struct {
	transformer Transformer
	flusher     Flusher

	phase     transformPhase
	pending   *Chunk
	pendingCb func(err error)
}

// NewTransform creates a duplex stream whose readable output is produced
// by t from its writable input.
func NewTransform(loop *eventloop.Loop, t Transformer) *Stream {
	return NewTransformWithConfig(loop, t, DefaultConfig())
}

// NewTransformWithConfig creates a transform stream with the specified configuration.
func NewTransformWithConfig(loop *eventloop.Loop, t Transformer, config Config) *Stream {
	ts := &TransformState{transformer: t}
	if f, ok := t.(Flusher); ok {
		ts.flusher = f
	}
	h := &transformHooks{ts: ts}

	s := newStream(loop, "transform", h, config)
	if d, ok := t.(Destroyer); ok {
		s.destroyer = d
	}
	s.sink = h
	s.t = ts
	s.r = newReadableState(config)
	s.w = newWritableState(config)
	// Output pushed while converting a write goes straight to flowing
	// consumers.
	s.r.sync = false
	return s
}

// transformHooks drives the Transformer from the generic readable and
// writable machinery.
type transformHooks struct {
	ts *TransformState
}

// Write fills the pending slot and starts the conversion when the readable
// side wants data.
func (h *transformHooks) Write(s *Stream, chunk Chunk, done func(error)) {
	ts := h.ts
	ts.pending = &chunk
	ts.pendingCb = done
	if ts.phase == phaseTransforming {
		return
	}
	rs := s.r
	if ts.phase == phasePullDeferred || rs.needReadable || rs.length < rs.highWaterMark {
		h.start(s)
	}
}

// Pull starts the conversion of the pending write, or defers until one
// arrives.
func (h *transformHooks) Pull(s *Stream, _ int) {
	ts := h.ts
	switch {
	case ts.phase == phaseTransforming || ts.phase == phaseFlushing:
	case ts.pending != nil:
		h.start(s)
	default:
		ts.phase = phasePullDeferred
	}
}

func (h *transformHooks) start(s *Stream) {
	ts := h.ts
	ts.phase = phaseTransforming
	chunk := *ts.pending
	called := false
	done := func(err error, out any) {
		if called {
			s.errorOrDestroy(ErrMultipleCallback, false)
			return
		}
		called = true
		h.afterTransform(s, err, out)
	}
	if perr := s.guard("transform", func() { ts.transformer.Transform(s, chunk, done) }); perr != nil {
		if called {
			s.errorOrDestroy(perr, false)
			return
		}
		done(perr, nil)
	}
}

func (h *transformHooks) afterTransform(s *Stream, err error, out any) {
	ts := h.ts
	ts.phase = phaseIdle
	cb := ts.pendingCb
	ts.pending = nil
	ts.pendingCb = nil

	if err == nil && out != nil {
		s.Push(out)
	}
	if cb != nil {
		cb(err)
	}

	rs := s.r
	rs.reading = false
	if err != nil {
		return
	}
	if rs.needReadable || rs.length < rs.highWaterMark {
		h.Pull(s, rs.highWaterMark)
	}
}

// Final runs the Flusher, pushes its output and closes the readable side.
func (h *transformHooks) Final(s *Stream, done func(error)) {
	ts := h.ts
	ts.phase = phaseFlushing
	if ts.flusher == nil {
		s.Push(nil)
		done(nil)
		return
	}

	called := false
	flushed := func(err error, out any) {
		if called {
			s.errorOrDestroy(ErrMultipleCallback, false)
			return
		}
		called = true
		if err != nil {
			done(err)
			return
		}
		if out != nil {
			s.Push(out)
		}
		s.Push(nil)
		done(nil)
	}
	if perr := s.guard("flush", func() { ts.flusher.Flush(s, flushed) }); perr != nil && !called {
		flushed(perr, nil)
	}
}

// NewPassThrough creates a transform that forwards every chunk unchanged.
func NewPassThrough(loop *eventloop.Loop) *Stream {
	return NewPassThroughWithConfig(loop, DefaultConfig())
}

// NewPassThroughWithConfig creates a pass-through stream with the specified configuration.
func NewPassThroughWithConfig(loop *eventloop.Loop, config Config) *Stream {
	if config.Name == "" {
		config.Name = "passthrough"
	}
	return NewTransformWithConfig(loop, TransformFunc(identity), config)
}

func identity(_ *Stream, chunk Chunk, done func(error, any)) {
	done(nil, chunk.Data)
}
