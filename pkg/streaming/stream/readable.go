package stream

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vnykmshr/streamflow/pkg/buffer"
)

// FlowMode is the consumption mode of a readable side.
type FlowMode int

const (
	// FlowingUnset means no consumption mode was chosen yet.
	FlowingUnset FlowMode = iota
	// Flowing means chunks are emitted as "data" events as they arrive.
	Flowing
	// Paused means the consumer pulls with Read.
	Paused
)

func (m FlowMode) String() string {
	switch m {
	case Flowing:
		return "flowing"
	case Paused:
		return "paused"
	default:
		return "unset"
	}
}

// ReadableState is the readable side's flow-control state.
type ReadableState struct {
	objectMode    bool
	highWaterMark int

	buffer []any
	length int

	flowing    FlowMode
	paused     bool
	ended      bool
	endEmitted bool
	reading    bool
	// sync is true while the source is being called from Read, so pushes
	// land in the buffer instead of being emitted re-entrantly.
	sync bool

	needReadable      bool
	emittedReadable   bool
	readableListening bool
	resumeScheduled   bool
	readingMore       bool
	dataEmitted       bool

	pipes      map[uuid.UUID]*pipeLink
	pipeOrder  []uuid.UUID
	awaitDrain map[uuid.UUID]struct{}

	decoder  *buffer.Decoder
	encoding buffer.Encoding
}

func newReadableState(config Config) *ReadableState {
	objectMode := config.readableObjectMode()
	rs := &ReadableState{
		objectMode:    objectMode,
		highWaterMark: config.highWaterMark(config.ReadableHighWaterMark, objectMode),
		sync:          true,
		pipes:         make(map[uuid.UUID]*pipeLink),
		awaitDrain:    make(map[uuid.UUID]struct{}),
	}
	if config.Encoding != "" {
		if dec, err := buffer.NewDecoder(config.Encoding); err == nil {
			rs.decoder = dec
			rs.encoding = dec.Encoding()
		}
	}
	return rs
}

// Push adds chunk to the readable buffer. Pushing nil signals the end of
// the stream. It reports whether the producer should keep pushing.
func (s *Stream) Push(chunk any) bool {
	return s.addChunk(chunk, false)
}

// Unshift puts chunk back at the front of the readable buffer.
func (s *Stream) Unshift(chunk any) {
	if chunk == nil {
		s.usageError(ErrNullValue)
		return
	}
	s.addChunk(chunk, true)
}

func (s *Stream) addChunk(chunk any, front bool) bool {
	rs := s.r
	if rs == nil {
		s.usageError(ErrNotReadable)
		return false
	}

	if !rs.objectMode && chunk != nil {
		switch v := chunk.(type) {
		case []byte:
			if front && rs.decoder != nil {
				str, err := buffer.ToString(v, rs.encoding)
				if err != nil {
					s.usageError(err)
					return false
				}
				chunk = str
			}
		case string:
			if front && rs.decoder != nil {
				break
			}
			chunk = []byte(v)
		default:
			s.usageError(fmt.Errorf("%w: got %T", ErrInvalidChunk, chunk))
			return false
		}
	}

	switch {
	case chunk == nil:
		rs.reading = false
		s.onEOF()
	case rs.objectMode || chunkLen(chunk) > 0:
		if front {
			if rs.endEmitted {
				s.usageError(ErrUnshiftAfterEnd)
				return false
			}
			if s.destroyed || s.errored != nil {
				return false
			}
			s.bufferChunk(chunk, true)
			break
		}
		if rs.ended {
			s.usageError(ErrPushAfterEOF)
			return false
		}
		if s.destroyed || s.errored != nil {
			return false
		}
		rs.reading = false
		if b, ok := chunk.([]byte); ok && rs.decoder != nil {
			str := rs.decoder.Write(b)
			if str == "" {
				s.maybeReadMore()
				break
			}
			chunk = str
		}
		s.bufferChunk(chunk, false)
	case !front:
		rs.reading = false
		s.maybeReadMore()
	}

	return !rs.ended && (rs.length < rs.highWaterMark || rs.length == 0)
}

func (s *Stream) bufferChunk(chunk any, front bool) {
	rs := s.r
	s.metrics.Pushed(s.name)
	if rs.flowing == Flowing && rs.length == 0 && !rs.sync && s.emitter.ListenerCount(EventData) > 0 {
		clear(rs.awaitDrain)
		rs.dataEmitted = true
		s.metrics.Read(s.name)
		s.emitter.Emit(EventData, chunk)
	} else {
		rs.length += s.readableLen(chunk)
		if front {
			rs.buffer = append([]any{chunk}, rs.buffer...)
		} else {
			rs.buffer = append(rs.buffer, chunk)
		}
		s.metrics.Buffered(s.name, "readable", rs.length)
		if rs.needReadable {
			s.emitReadable()
		}
	}
	s.maybeReadMore()
}

func (s *Stream) onEOF() {
	rs := s.r
	if rs.ended {
		return
	}
	if rs.decoder != nil {
		if tail := rs.decoder.End(); tail != "" {
			rs.buffer = append(rs.buffer, tail)
			rs.length += s.readableLen(tail)
		}
	}
	rs.ended = true
	if rs.sync {
		s.emitReadable()
		return
	}
	rs.needReadable = false
	rs.emittedReadable = true
	s.emitReadableNow()
}

func (s *Stream) emitReadable() {
	rs := s.r
	rs.needReadable = false
	if !rs.emittedReadable {
		rs.emittedReadable = true
		s.loop.NextTick(s.emitReadableNow)
	}
}

func (s *Stream) emitReadableNow() {
	rs := s.r
	if !s.destroyed && s.errored == nil && (rs.length > 0 || rs.ended) {
		s.emitter.Emit(EventReadable)
		rs.emittedReadable = false
	}
	rs.needReadable = rs.flowing != Flowing && !rs.ended && rs.length <= rs.highWaterMark
	s.flow()
}

func (s *Stream) maybeReadMore() {
	rs := s.r
	if rs.readingMore {
		return
	}
	rs.readingMore = true
	s.loop.NextTick(func() {
		for !rs.reading && !rs.ended &&
			(rs.length < rs.highWaterMark || (rs.flowing == Flowing && rs.length == 0)) {
			before := rs.length
			s.read(0)
			if before == rs.length {
				break
			}
		}
		rs.readingMore = false
	})
}

// Read returns buffered data: everything buffered in byte mode, or the next
// value in object mode. It returns nil when nothing is available, either
// because the stream has not produced data yet or because it ended; check
// ReadableEnded to tell them apart.
func (s *Stream) Read() any {
	return s.read(-1)
}

// ReadN returns exactly n bytes (or one value in object mode), or nil when
// fewer are buffered. Once the stream ended the remainder is returned.
func (s *Stream) ReadN(n int) any {
	if n < 0 {
		n = 0
	}
	return s.read(n)
}

// read implements Read and ReadN; n < 0 means "whatever is buffered".
func (s *Stream) read(n int) any {
	rs := s.r
	if rs == nil {
		return nil
	}
	orig := n
	if n > rs.highWaterMark {
		rs.highWaterMark = nextHighWaterMark(n)
	}
	if n != 0 {
		rs.emittedReadable = false
	}

	if n == 0 && rs.needReadable && (rs.length >= rs.highWaterMark || rs.ended) {
		if rs.length == 0 && rs.ended {
			s.endReadable()
		} else {
			s.emitReadable()
		}
		return nil
	}

	n = s.howMuchToRead(n)
	if n == 0 && rs.ended {
		if rs.length == 0 {
			s.endReadable()
		}
		return nil
	}

	doRead := rs.needReadable
	if rs.length == 0 || rs.length-n < rs.highWaterMark {
		doRead = true
	}
	if rs.ended || rs.reading || s.destroyed || s.errored != nil {
		doRead = false
	} else if doRead {
		rs.reading = true
		rs.sync = true
		if rs.length == 0 {
			rs.needReadable = true
		}
		s.pull()
		rs.sync = false
		if !rs.reading {
			n = s.howMuchToRead(orig)
		}
	}

	var ret any
	if n > 0 {
		ret = s.fromList(n)
	}
	if ret == nil {
		rs.needReadable = rs.length <= rs.highWaterMark
		n = 0
	} else {
		rs.length -= n
		clear(rs.awaitDrain)
		s.metrics.Buffered(s.name, "readable", rs.length)
	}

	if rs.length == 0 {
		if !rs.ended {
			rs.needReadable = true
		}
		if orig != n && rs.ended {
			s.endReadable()
		}
	}

	if ret != nil && !s.errorEmitted && !s.closeEmitted {
		rs.dataEmitted = true
		s.metrics.Read(s.name)
		s.emitter.Emit(EventData, ret)
	}
	return ret
}

func (s *Stream) pull() {
	if s.source == nil {
		return
	}
	rs := s.r
	if err := s.guard("pull", func() { s.source.Pull(s, rs.highWaterMark) }); err != nil {
		s.errorOrDestroy(err, false)
	}
}

func (s *Stream) howMuchToRead(n int) int {
	rs := s.r
	if n == 0 || (rs.length == 0 && rs.ended) {
		return 0
	}
	if rs.objectMode {
		return 1
	}
	if n < 0 {
		if rs.flowing == Flowing && rs.length > 0 {
			return s.readableLen(rs.buffer[0])
		}
		return rs.length
	}
	if n <= rs.length {
		return n
	}
	if rs.ended {
		return rs.length
	}
	return 0
}

// fromList removes n units from the front of the buffer.
func (s *Stream) fromList(n int) any {
	rs := s.r
	if rs.length == 0 {
		return nil
	}
	if rs.objectMode {
		ret := rs.buffer[0]
		rs.buffer[0] = nil
		rs.buffer = rs.buffer[1:]
		return ret
	}
	if n >= rs.length {
		var ret any
		switch {
		case rs.decoder != nil:
			var sb strings.Builder
			for _, c := range rs.buffer {
				sb.WriteString(c.(string))
			}
			ret = sb.String()
		case len(rs.buffer) == 1:
			ret = rs.buffer[0]
		default:
			parts := make([][]byte, len(rs.buffer))
			for i, c := range rs.buffer {
				parts[i] = c.([]byte)
			}
			ret = buffer.Concat(parts)
		}
		rs.buffer = rs.buffer[:0]
		return ret
	}
	return s.consume(n)
}

// consume takes exactly n bytes (or n characters of decoded text) off the
// front, splitting the last chunk when needed.
func (s *Stream) consume(n int) any {
	rs := s.r
	if rs.decoder != nil {
		var sb strings.Builder
		for taken := 0; taken < n; {
			str := rs.buffer[0].(string)
			need := n - taken
			count := utf8.RuneCountInString(str)
			if count > need {
				cut := runeOffset(str, need)
				sb.WriteString(str[:cut])
				rs.buffer[0] = str[cut:]
				break
			}
			taken += count
			sb.WriteString(str)
			rs.buffer = rs.buffer[1:]
		}
		return sb.String()
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		b := rs.buffer[0].([]byte)
		need := n - len(out)
		if len(b) > need {
			out = append(out, b[:need]...)
			rs.buffer[0] = b[need:]
			break
		}
		out = append(out, b...)
		rs.buffer = rs.buffer[1:]
	}
	return out
}

func (s *Stream) endReadable() {
	rs := s.r
	if rs.endEmitted {
		return
	}
	rs.ended = true
	s.loop.NextTick(func() {
		if s.errored != nil || s.closeEmitted || rs.endEmitted || rs.length != 0 {
			return
		}
		rs.endEmitted = true
		s.emitter.Emit(EventEnd)

		if s.w != nil && !s.allowHalfOpen {
			s.loop.NextTick(func() {
				if !s.w.ending && !s.destroyed {
					s.End()
				}
			})
			return
		}
		s.maybeAutoDestroy()
	})
}

// Pause stops flowing mode. Buffered and future chunks stay in the buffer
// until Resume or Read.
func (s *Stream) Pause() {
	rs := s.r
	if rs == nil {
		return
	}
	if rs.flowing != Paused {
		rs.flowing = Paused
		s.emitter.Emit(EventPause)
	}
	rs.paused = true
}

// Resume switches the stream into flowing mode: buffered chunks are emitted
// as "data" events and the source is pulled until the buffer fills.
func (s *Stream) Resume() {
	rs := s.r
	if rs == nil {
		return
	}
	if rs.flowing != Flowing {
		if rs.readableListening {
			rs.flowing = Paused
		} else {
			rs.flowing = Flowing
		}
		if !rs.resumeScheduled {
			rs.resumeScheduled = true
			s.loop.NextTick(s.resumeNow)
		}
	}
	rs.paused = false
}

func (s *Stream) resumeNow() {
	rs := s.r
	if !rs.reading {
		s.read(0)
	}
	rs.resumeScheduled = false
	s.emitter.Emit(EventResume)
	s.flow()
	if rs.flowing == Flowing && !rs.reading {
		s.read(0)
	}
}

func (s *Stream) flow() {
	rs := s.r
	for rs.flowing == Flowing && !s.destroyed && s.read(-1) != nil {
	}
}

// IsPaused reports whether Pause was called more recently than Resume.
func (s *Stream) IsPaused() bool {
	return s.r != nil && s.r.paused
}

// Flowing returns the consumption mode.
func (s *Stream) Flowing() FlowMode {
	if s.r == nil {
		return FlowingUnset
	}
	return s.r.flowing
}

// SetEncoding makes the readable side yield strings decoded with enc.
// Already buffered bytes are decoded immediately.
func (s *Stream) SetEncoding(enc buffer.Encoding) error {
	rs := s.r
	if rs == nil {
		return ErrNotReadable
	}
	dec, err := buffer.NewDecoder(enc)
	if err != nil {
		return err
	}
	rs.decoder = dec
	rs.encoding = dec.Encoding()

	var sb strings.Builder
	for _, c := range rs.buffer {
		switch v := c.(type) {
		case []byte:
			sb.WriteString(dec.Write(v))
		case string:
			sb.WriteString(v)
		}
	}
	rs.buffer = rs.buffer[:0]
	if sb.Len() > 0 {
		rs.buffer = append(rs.buffer, sb.String())
	}
	rs.length = utf8.RuneCountInString(sb.String())
	return nil
}

// beginFlowing is invoked when a "data" listener is attached.
func (s *Stream) beginFlowing() {
	rs := s.r
	rs.readableListening = s.emitter.ListenerCount(EventReadable) > 0
	if rs.flowing != Paused {
		s.Resume()
	}
}

// beginReadable is invoked when a "readable" listener is attached.
func (s *Stream) beginReadable() {
	rs := s.r
	if rs.endEmitted || rs.readableListening {
		return
	}
	rs.readableListening = true
	rs.needReadable = true
	rs.flowing = Paused
	rs.emittedReadable = false
	if rs.length > 0 {
		s.emitReadable()
	} else if !rs.reading {
		s.loop.NextTick(func() { s.read(0) })
	}
}

// updateReadableListening runs after a "data" or "readable" listener was
// removed.
func (s *Stream) updateReadableListening() {
	rs := s.r
	rs.readableListening = s.emitter.ListenerCount(EventReadable) > 0
	switch {
	case rs.resumeScheduled && !rs.paused:
		rs.flowing = Flowing
	case s.emitter.ListenerCount(EventData) > 0:
		s.Resume()
	case !rs.readableListening:
		rs.flowing = FlowingUnset
	}
}

// ReadableLength returns the buffered length: bytes, or values in object mode.
func (s *Stream) ReadableLength() int {
	if s.r == nil {
		return 0
	}
	return s.r.length
}

// ReadableHighWaterMark returns the readable buffering threshold.
func (s *Stream) ReadableHighWaterMark() int {
	if s.r == nil {
		return 0
	}
	return s.r.highWaterMark
}

// ReadableEnded reports whether "end" was emitted.
func (s *Stream) ReadableEnded() bool {
	return s.r != nil && s.r.endEmitted
}

// ReadableEOF reports whether the producer pushed the EOF sentinel.
func (s *Stream) ReadableEOF() bool {
	return s.r != nil && s.r.ended
}

// ReadableObjectMode reports whether the readable side is in object mode.
func (s *Stream) ReadableObjectMode() bool {
	return s.r != nil && s.r.objectMode
}

// ReadableEncoding returns the encoding set by SetEncoding, if any.
func (s *Stream) ReadableEncoding() buffer.Encoding {
	if s.r == nil {
		return ""
	}
	return s.r.encoding
}

// Readable reports whether it is still possible to read from the stream.
func (s *Stream) Readable() bool {
	return s.r != nil && !s.destroyed && s.errored == nil && !s.r.endEmitted
}

// readableLen is the size of chunk in the readable buffer. Decoded strings
// are measured in characters so reads never split a rune.
func (s *Stream) readableLen(chunk any) int {
	if s.r.objectMode {
		return 1
	}
	if str, ok := chunk.(string); ok {
		return utf8.RuneCountInString(str)
	}
	return chunkLen(chunk)
}

func chunkLen(chunk any) int {
	switch v := chunk.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	default:
		return 1
	}
}

// runeOffset returns the byte offset of the n-th character of str.
func runeOffset(str string, n int) int {
	for i := range str {
		if n == 0 {
			return i
		}
		n--
	}
	return len(str)
}

// nextHighWaterMark rounds n up to the next power of two.
func nextHighWaterMark(n int) int {
	const maxHighWaterMark = 1 << 30
	if n >= maxHighWaterMark {
		return maxHighWaterMark
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
