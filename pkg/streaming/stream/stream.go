package stream

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/buffer"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/events"
	"github.com/vnykmshr/streamflow/pkg/logging"
	"github.com/vnykmshr/streamflow/pkg/metrics"
)

// Event names emitted by streams.
const (
	EventData      = "data"
	EventEnd       = "end"
	EventReadable  = "readable"
	EventError     = events.ErrorEvent
	EventClose     = "close"
	EventFinish    = "finish"
	EventPrefinish = "prefinish"
	EventDrain     = "drain"
	EventPause     = "pause"
	EventResume    = "resume"
	EventPipe      = "pipe"
	EventUnpipe    = "unpipe"
)

// Stream is a readable, writable or duplex stream. Which sides exist is
// fixed at construction. All methods must be called on the stream's event
// loop goroutine.
type Stream struct {
	id      uuid.UUID
	name    string
	loop    *eventloop.Loop
	config  Config
	logger  zerolog.Logger
	metrics *metrics.Registry
	emitter *events.Emitter

	r *ReadableState
	w *WritableState
	t *TransformState

	source    Source
	sink      Sink
	batch     BatchSink
	finalizer Finalizer
	destroyer Destroyer

	allowHalfOpen bool
	autoDestroy   bool
	emitClose     bool

	destroyed    bool
	closed       bool
	closeEmitted bool
	errorEmitted bool
	errored      error
}

// NewReadable creates a readable stream with default configuration. src may
// be nil for streams fed only through Push.
func NewReadable(loop *eventloop.Loop, src Source) *Stream {
	return NewReadableWithConfig(loop, src, DefaultConfig())
}

// NewReadableWithConfig creates a readable stream with the specified configuration.
func NewReadableWithConfig(loop *eventloop.Loop, src Source, config Config) *Stream {
	s := newStream(loop, "readable", src, config)
	s.r = newReadableState(config)
	return s
}

// NewWritable creates a writable stream with default configuration.
func NewWritable(loop *eventloop.Loop, sink Sink) *Stream {
	return NewWritableWithConfig(loop, sink, DefaultConfig())
}

// NewWritableWithConfig creates a writable stream with the specified configuration.
func NewWritableWithConfig(loop *eventloop.Loop, sink Sink, config Config) *Stream {
	s := newStream(loop, "writable", sink, config)
	s.sink = sink
	s.w = newWritableState(config)
	return s
}

// NewDuplex creates a stream with independent readable and writable sides.
func NewDuplex(loop *eventloop.Loop, src Source, sink Sink) *Stream {
	return NewDuplexWithConfig(loop, src, sink, DefaultConfig())
}

// NewDuplexWithConfig creates a duplex stream with the specified configuration.
func NewDuplexWithConfig(loop *eventloop.Loop, src Source, sink Sink, config Config) *Stream {
	s := newStream(loop, "duplex", src, config)
	s.bindHooks(sink)
	s.sink = sink
	s.r = newReadableState(config)
	s.w = newWritableState(config)
	return s
}

func newStream(loop *eventloop.Loop, kind string, hooks any, config Config) *Stream {
	def := DefaultConfig()
	if _, err := buffer.Normalize(string(config.DefaultEncoding)); err != nil || config.DefaultEncoding == "" {
		config.DefaultEncoding = def.DefaultEncoding
	}
	name := config.Name
	if name == "" {
		name = kind
	}

	s := &Stream{
		id:            uuid.New(),
		name:          name,
		loop:          loop,
		config:        config,
		metrics:       config.Metrics,
		allowHalfOpen: config.AllowHalfOpen,
		autoDestroy:   config.AutoDestroy,
		emitClose:     config.EmitClose,
	}
	s.logger = logging.Component(loop.Logger(), kind).With().
		Str(logging.FieldStream, name).
		Str(logging.FieldStreamID, s.id.String()).
		Logger()
	s.emitter = events.New(s.unhandledError)
	s.bindHooks(hooks)
	return s
}

// bindHooks records the optional capabilities implemented by hooks.
func (s *Stream) bindHooks(hooks any) {
	if hooks == nil {
		return
	}
	if src, ok := hooks.(Source); ok && s.source == nil {
		s.source = src
	}
	if b, ok := hooks.(BatchSink); ok && s.batch == nil {
		s.batch = b
	}
	if f, ok := hooks.(Finalizer); ok && s.finalizer == nil {
		s.finalizer = f
	}
	if d, ok := hooks.(Destroyer); ok && s.destroyer == nil {
		s.destroyer = d
	}
}

// ID returns the stream's unique identity.
func (s *Stream) ID() uuid.UUID { return s.id }

// Name returns the name used in logs and metrics.
func (s *Stream) Name() string { return s.name }

// Loop returns the event loop the stream runs on.
func (s *Stream) Loop() *eventloop.Loop { return s.loop }

// Logger returns the stream's logger. It carries the stream name and id.
func (s *Stream) Logger() *zerolog.Logger { return &s.logger }

// Metrics returns the registry the stream reports to, or nil.
func (s *Stream) Metrics() *metrics.Registry { return s.metrics }

// IsReadable reports whether the stream has a readable side.
func (s *Stream) IsReadable() bool { return s.r != nil }

// IsWritable reports whether the stream has a writable side.
func (s *Stream) IsWritable() bool { return s.w != nil }

// Destroyed reports whether Destroy was called.
func (s *Stream) Destroyed() bool { return s.destroyed }

// Closed reports whether "close" was emitted (or would have been, with
// EmitClose off).
func (s *Stream) Closed() bool { return s.closeEmitted }

// Errored returns the first error the stream failed with, or nil.
func (s *Stream) Errored() error { return s.errored }

func (s *Stream) String() string {
	return fmt.Sprintf("%s(%s)", s.name, s.id)
}

// Destroy tears the stream down. It is idempotent: only the first call has
// any effect. The Destroyer hook runs first; then "error" (when err is not
// nil) and "close" are emitted on a later tick. Pending write callbacks fail
// with err, or ErrDestroyed.
func (s *Stream) Destroy(err error) {
	if s.destroyed {
		return
	}
	if s.w != nil && (len(s.w.buffered) > 0 || len(s.w.onFinished) > 0) {
		s.loop.NextTick(s.errorBuffer)
	}
	s.setErrored(err)
	s.destroyed = true
	s.metrics.Destroyed(s.name)
	s.logger.Debug().Err(err).Msg("destroy")

	called := false
	onDestroy := func(err error) {
		if called {
			return
		}
		called = true
		s.setErrored(err)
		s.closed = true
		if err != nil {
			s.loop.NextTick(func() {
				s.emitError(err)
				s.emitCloseEvent()
			})
		} else {
			s.loop.NextTick(s.emitCloseEvent)
		}
	}

	if s.destroyer == nil {
		onDestroy(err)
		return
	}
	if perr := s.guard("destroy", func() { s.destroyer.Destroy(s, err, onDestroy) }); perr != nil {
		onDestroy(perr)
	}
}

func (s *Stream) setErrored(err error) {
	if err != nil && s.errored == nil {
		s.errored = err
	}
}

func (s *Stream) emitError(err error) {
	if s.errorEmitted {
		return
	}
	s.errorEmitted = true
	s.metrics.Errored(s.name)
	s.emitter.Emit(EventError, err)
}

func (s *Stream) emitCloseEvent() {
	s.closeEmitted = true
	if s.emitClose {
		s.emitter.Emit(EventClose)
	}
}

// errorOrDestroy reports a hook failure. The stream records the error and
// emits it once but stays usable until Destroy is called.
func (s *Stream) errorOrDestroy(err error, sync bool) {
	if s.destroyed {
		return
	}
	s.setErrored(err)
	s.logger.Debug().Err(err).Msg("stream error")
	if sync {
		s.loop.NextTick(func() { s.emitError(err) })
	} else {
		s.emitError(err)
	}
}

// usageError reports a caller mistake such as writing after End. The error
// is emitted on the next tick but not recorded, so buffered data is still
// delivered and the stream can still end, finish and close.
func (s *Stream) usageError(err error) {
	if s.destroyed {
		return
	}
	s.logger.Debug().Err(err).Msg("usage error")
	s.loop.NextTick(func() {
		if s.closeEmitted {
			return
		}
		s.metrics.Errored(s.name)
		s.emitter.Emit(EventError, err)
	})
}

func (s *Stream) unhandledError(err error) {
	s.logger.Error().Err(err).Msg("unhandled stream error")
	s.loop.Throw(err)
}

// guard runs fn and converts a panic into a *HookPanicError.
func (s *Stream) guard(hook string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookPanicError{Hook: hook, Value: r}
		}
	}()
	fn()
	return nil
}

// maybeAutoDestroy destroys the stream once every side it has completed.
func (s *Stream) maybeAutoDestroy() {
	if !s.autoDestroy || s.destroyed {
		return
	}
	if s.r != nil && !s.r.endEmitted {
		return
	}
	if s.w != nil && !s.w.finished {
		return
	}
	s.Destroy(nil)
}
