package stream

import (
	"fmt"

	"github.com/vnykmshr/streamflow/pkg/buffer"
)

// WriteRequest is a fully resolved write: the chunk, its encoding (empty
// means the stream's default) and an optional completion callback.
type WriteRequest struct {
	Chunk    any
	Encoding buffer.Encoding
	Callback func(err error)
}

type writeEntry struct {
	chunk    Chunk
	size     int
	callback func(err error)
}

// WritableState is the writable side's buffering and completion state.
type WritableState struct {
	objectMode      bool
	highWaterMark   int
	decodeStrings   bool
	defaultEncoding buffer.Encoding

	buffered []writeEntry
	length   int
	corked   int

	writing  bool
	writeLen int
	writeCb  func(err error)
	// sync is true while a sink hook is being called, so completions that
	// happen inside the call are deferred to the next tick.
	sync             bool
	bufferProcessing bool
	afterWrite       []func(err error)

	needDrain   bool
	ending      bool
	ended       bool
	finished    bool
	finalCalled bool
	prefinished bool

	// pendingcb counts write callbacks and the final hook still outstanding.
	pendingcb  int
	onFinished []func(err error)
}

func newWritableState(config Config) *WritableState {
	objectMode := config.writableObjectMode()
	return &WritableState{
		objectMode:      objectMode,
		highWaterMark:   config.highWaterMark(config.WritableHighWaterMark, objectMode),
		decodeStrings:   config.DecodeStrings,
		defaultEncoding: config.DefaultEncoding,
	}
}

func nop(error) {}

// Write writes chunk and reports whether the caller may keep writing. A
// false return means the buffer reached the high-water mark; wait for
// "drain" before writing more.
func (s *Stream) Write(chunk any) bool {
	ok, _ := s.write(WriteRequest{Chunk: chunk})
	return ok
}

// WriteWith writes req.Chunk. req.Callback, if set, is called once that
// write completed or failed.
func (s *Stream) WriteWith(req WriteRequest) bool {
	ok, _ := s.write(req)
	return ok
}

func (s *Stream) write(req WriteRequest) (bool, error) {
	cb := req.Callback
	if cb == nil {
		cb = nop
	}
	ws := s.w
	if ws == nil {
		s.loop.NextTick(func() { cb(ErrNotWritable) })
		return false, ErrNotWritable
	}

	var err error
	enc := ws.defaultEncoding
	if req.Encoding != "" {
		enc, err = buffer.Normalize(string(req.Encoding))
	}
	chunk := Chunk{Data: req.Chunk, Encoding: enc}

	switch {
	case err != nil:
	case req.Chunk == nil:
		err = ErrNullValue
	case !ws.objectMode:
		switch v := req.Chunk.(type) {
		case string:
			if ws.decodeStrings {
				b, cerr := buffer.From(v, enc)
				if cerr != nil {
					err = cerr
					break
				}
				chunk = Chunk{Data: b, Encoding: buffer.Raw}
			}
		case []byte:
			chunk.Encoding = buffer.Raw
		default:
			err = fmt.Errorf("%w: got %T", ErrInvalidChunk, req.Chunk)
		}
	}
	// A recorded failure was already emitted; only the callback learns of it.
	report := true
	if err == nil {
		switch {
		case ws.ending:
			err = ErrWriteAfterEnd
		case s.destroyed:
			err = ErrDestroyed
		case s.errored != nil:
			err = s.errored
			report = false
		}
	}
	if err != nil {
		s.loop.NextTick(func() { cb(err) })
		if report {
			s.usageError(err)
		}
		return false, err
	}

	ws.pendingcb++
	return s.writeOrBuffer(chunk, cb), nil
}

func (s *Stream) writeOrBuffer(chunk Chunk, cb func(error)) bool {
	ws := s.w
	size := s.writableLen(chunk)
	ws.length += size
	ret := ws.length < ws.highWaterMark
	if !ret {
		ws.needDrain = true
		s.metrics.Backpressure(s.name)
	}
	if ws.objectMode {
		s.metrics.Written(s.name, 0)
	} else {
		s.metrics.Written(s.name, size)
	}

	if ws.writing || ws.corked > 0 || s.errored != nil {
		ws.buffered = append(ws.buffered, writeEntry{chunk: chunk, size: size, callback: cb})
		s.metrics.Buffered(s.name, "writable", ws.length)
	} else {
		s.doWrite(size, chunk, nil, cb)
	}
	return ret && s.errored == nil && !s.destroyed
}

func (s *Stream) doWrite(size int, chunk Chunk, batch []Chunk, cb func(error)) {
	ws := s.w
	ws.writeLen = size
	ws.writeCb = cb
	ws.writing = true
	ws.sync = true

	var perr error
	switch {
	case s.destroyed:
		s.onWrite(ErrDestroyed)
	case batch != nil:
		perr = s.guard("writev", func() { s.batch.Writev(s, batch, s.onWrite) })
	case s.sink == nil:
		s.onWrite(ErrNotImplemented)
	default:
		perr = s.guard("write", func() { s.sink.Write(s, chunk, s.onWrite) })
	}
	if perr != nil {
		if ws.writeCb != nil {
			s.onWrite(perr)
		} else {
			s.errorOrDestroy(perr, false)
		}
	}
	ws.sync = false
}

// onWrite is the completion passed to sink hooks.
func (s *Stream) onWrite(err error) {
	ws := s.w
	sync := ws.sync
	cb := ws.writeCb
	if cb == nil {
		s.errorOrDestroy(ErrMultipleCallback, false)
		return
	}

	ws.writing = false
	ws.writeCb = nil
	ws.length -= ws.writeLen
	ws.writeLen = 0

	if err != nil {
		s.setErrored(err)
		if sync {
			s.loop.NextTick(func() { s.onWriteError(err, cb) })
		} else {
			s.onWriteError(err, cb)
		}
		return
	}

	if len(ws.buffered) > 0 {
		s.clearBuffer()
	}

	if !sync {
		s.afterWriteDone([]func(error){cb})
		return
	}
	// Completions that happen inside the hook call are batched into one
	// tick so callbacks never run inside the caller's Write.
	if ws.afterWrite == nil {
		s.loop.NextTick(func() {
			cbs := ws.afterWrite
			ws.afterWrite = nil
			s.afterWriteDone(cbs)
		})
	}
	ws.afterWrite = append(ws.afterWrite, cb)
}

func (s *Stream) onWriteError(err error, cb func(error)) {
	ws := s.w
	ws.pendingcb--
	cb(err)
	s.errorBuffer()
	s.errorOrDestroy(err, false)
}

func (s *Stream) afterWriteDone(cbs []func(error)) {
	ws := s.w
	if !ws.ending && !s.destroyed && ws.length == 0 && ws.needDrain {
		ws.needDrain = false
		s.metrics.Drained(s.name)
		s.emitter.Emit(EventDrain)
	}
	for _, cb := range cbs {
		ws.pendingcb--
		cb(nil)
	}
	if s.destroyed {
		s.errorBuffer()
	}
	s.finishMaybe(false)
}

// errorBuffer fails every buffered write and pending End callback.
func (s *Stream) errorBuffer() {
	ws := s.w
	if ws.writing {
		return
	}
	err := s.errored
	if err == nil {
		err = ErrDestroyed
	}
	pending := ws.buffered
	ws.buffered = nil
	for _, e := range pending {
		ws.length -= e.size
		ws.pendingcb--
		e.callback(err)
	}
	fins := ws.onFinished
	ws.onFinished = nil
	for _, fn := range fins {
		fn(err)
	}
}

func (s *Stream) clearBuffer() {
	ws := s.w
	if ws.corked > 0 || ws.bufferProcessing || s.destroyed || len(ws.buffered) == 0 {
		return
	}
	ws.bufferProcessing = true
	defer func() { ws.bufferProcessing = false }()

	if len(ws.buffered) > 1 && s.batch != nil {
		entries := ws.buffered
		ws.buffered = nil
		ws.pendingcb -= len(entries) - 1

		chunks := make([]Chunk, len(entries))
		size := 0
		for i, e := range entries {
			chunks[i] = e.chunk
			size += e.size
		}
		s.doWrite(size, Chunk{}, chunks, func(err error) {
			for _, e := range entries {
				e.callback(err)
			}
		})
		return
	}

	i := 0
	for {
		e := ws.buffered[i]
		ws.buffered[i] = writeEntry{}
		i++
		s.doWrite(e.size, e.chunk, nil, e.callback)
		if i >= len(ws.buffered) || ws.writing {
			break
		}
	}
	if i >= len(ws.buffered) {
		ws.buffered = nil
	} else {
		ws.buffered = ws.buffered[i:]
	}
}

// End signals that no more data will be written. "finish" is emitted once
// every buffered write and the Finalizer hook completed.
func (s *Stream) End() {
	s.EndWith(WriteRequest{})
}

// EndWith writes req.Chunk, if any, then ends the stream. req.Callback is
// called on "finish" or with the error that prevented it.
func (s *Stream) EndWith(req WriteRequest) {
	ws := s.w
	if ws == nil {
		if req.Callback != nil {
			s.loop.NextTick(func() { req.Callback(ErrNotWritable) })
		}
		return
	}

	var err error
	if req.Chunk != nil {
		_, err = s.write(WriteRequest{Chunk: req.Chunk, Encoding: req.Encoding})
	}
	if ws.corked > 0 {
		ws.corked = 1
		s.Uncork()
	}

	switch {
	case err != nil:
	case s.errored == nil && !ws.ending:
		ws.ending = true
		s.finishMaybe(true)
		ws.ended = true
	case ws.finished:
		err = ErrAlreadyFinished
	case s.destroyed:
		err = ErrDestroyed
	case s.errored != nil:
		err = s.errored
	}

	if cb := req.Callback; cb != nil {
		if err != nil || ws.finished {
			s.loop.NextTick(func() { cb(err) })
		} else {
			ws.onFinished = append(ws.onFinished, cb)
		}
	}
}

func (s *Stream) needFinish() bool {
	ws := s.w
	return ws.ending &&
		!s.destroyed &&
		ws.length == 0 &&
		s.errored == nil &&
		len(ws.buffered) == 0 &&
		!ws.finished &&
		!ws.writing &&
		!s.errorEmitted &&
		!s.closeEmitted
}

func (s *Stream) finishMaybe(sync bool) {
	ws := s.w
	if !s.needFinish() {
		return
	}
	s.prefinish()
	if ws.pendingcb != 0 {
		return
	}
	if sync {
		ws.pendingcb++
		s.loop.NextTick(func() {
			if s.needFinish() {
				s.finish()
			} else {
				ws.pendingcb--
			}
		})
	} else if s.needFinish() {
		ws.pendingcb++
		s.finish()
	}
}

func (s *Stream) prefinish() {
	ws := s.w
	if ws.prefinished || ws.finalCalled {
		return
	}
	if s.finalizer != nil && !s.destroyed {
		ws.finalCalled = true
		s.callFinal()
		return
	}
	ws.prefinished = true
	s.emitter.Emit(EventPrefinish)
}

func (s *Stream) callFinal() {
	ws := s.w
	called := false
	onFinal := func(err error) {
		if called {
			if err == nil {
				err = ErrMultipleCallback
			}
			s.errorOrDestroy(err, false)
			return
		}
		called = true
		ws.pendingcb--
		if err != nil {
			fins := ws.onFinished
			ws.onFinished = nil
			for _, fn := range fins {
				fn(err)
			}
			s.errorOrDestroy(err, ws.sync)
			return
		}
		if s.needFinish() {
			ws.prefinished = true
			s.emitter.Emit(EventPrefinish)
			ws.pendingcb++
			s.loop.NextTick(s.finish)
		}
	}

	ws.sync = true
	ws.pendingcb++
	if perr := s.guard("final", func() { s.finalizer.Final(s, onFinal) }); perr != nil {
		onFinal(perr)
	}
	ws.sync = false
}

func (s *Stream) finish() {
	ws := s.w
	ws.pendingcb--
	ws.finished = true
	s.logger.Debug().Msg("finish")

	fins := ws.onFinished
	ws.onFinished = nil
	for _, fn := range fins {
		fn(nil)
	}
	s.emitter.Emit(EventFinish)
	s.maybeAutoDestroy()
}

// Cork buffers subsequent writes until a matching Uncork. Calls nest.
func (s *Stream) Cork() {
	if s.w != nil {
		s.w.corked++
	}
}

// Uncork undoes one Cork. When the last one is undone the buffered writes
// are dispatched in order.
func (s *Stream) Uncork() {
	ws := s.w
	if ws == nil || ws.corked == 0 {
		return
	}
	ws.corked--
	if !ws.writing {
		s.clearBuffer()
	}
}

// SetDefaultEncoding sets the encoding used for string writes that do not
// name one.
func (s *Stream) SetDefaultEncoding(enc buffer.Encoding) error {
	if s.w == nil {
		return ErrNotWritable
	}
	n, err := buffer.Normalize(string(enc))
	if err != nil {
		return err
	}
	s.w.defaultEncoding = n
	return nil
}

// WritableLength returns the buffered length, including the write in flight.
func (s *Stream) WritableLength() int {
	if s.w == nil {
		return 0
	}
	return s.w.length
}

// WritableHighWaterMark returns the writable buffering threshold.
func (s *Stream) WritableHighWaterMark() int {
	if s.w == nil {
		return 0
	}
	return s.w.highWaterMark
}

// NeedDrain reports whether a write returned false and "drain" is pending.
func (s *Stream) NeedDrain() bool {
	return s.w != nil && s.w.needDrain
}

// WritableEnded reports whether End was called.
func (s *Stream) WritableEnded() bool {
	return s.w != nil && s.w.ending
}

// WritableFinished reports whether "finish" was emitted.
func (s *Stream) WritableFinished() bool {
	return s.w != nil && s.w.finished
}

// WritableCorked returns the cork nesting depth.
func (s *Stream) WritableCorked() int {
	if s.w == nil {
		return 0
	}
	return s.w.corked
}

// WritableObjectMode reports whether the writable side is in object mode.
func (s *Stream) WritableObjectMode() bool {
	return s.w != nil && s.w.objectMode
}

// Writable reports whether it is still possible to write to the stream.
func (s *Stream) Writable() bool {
	return s.w != nil && !s.destroyed && s.errored == nil && !s.w.ending
}

func (s *Stream) writableLen(chunk Chunk) int {
	if s.w.objectMode {
		return 1
	}
	return chunkLen(chunk.Data)
}
