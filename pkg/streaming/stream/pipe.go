package stream

import "github.com/google/uuid"

// PipeOptions controls Pipe behaviour.
type PipeOptions struct {
	// End calls dest.End when the source ends.
	End bool
}

// pipeLink is a source's record of one destination. Sources look
// destinations up by id, and the link owns every listener the pipe added,
// so either side can be torn down without the other holding on to it.
type pipeLink struct {
	dest    *Stream
	cleanup func()
}

// Pipe forwards this stream's data into dest, pausing while dest applies
// backpressure, and ends dest when this stream ends. It returns dest.
func (s *Stream) Pipe(dest *Stream) *Stream {
	return s.PipeWith(dest, PipeOptions{End: true})
}

// PipeWith is Pipe with options. Piping twice to the same destination is a
// no-op.
func (s *Stream) PipeWith(dest *Stream, opts PipeOptions) *Stream {
	src := s
	rs := s.r
	if rs == nil {
		s.usageError(ErrNotReadable)
		return dest
	}
	if dest.w == nil {
		s.usageError(ErrNotWritable)
		return dest
	}
	id := dest.id
	if _, ok := rs.pipes[id]; ok {
		return dest
	}
	link := &pipeLink{dest: dest}
	rs.pipes[id] = link
	rs.pipeOrder = append(rs.pipeOrder, id)
	s.logger.Debug().Str("dest", dest.name).Msg("pipe")

	var (
		cleanedUp   bool
		removeDrain func()
		removeEnd   = func() {}
	)

	unpipe := func() { src.Unpipe(dest) }

	onEnd := unpipe
	if opts.End {
		onEnd = dest.End
	}
	if rs.endEmitted {
		s.loop.NextTick(onEnd)
	} else {
		removeEnd = s.emitter.Once(EventEnd, func(...any) { onEnd() })
	}

	pipeOnDrain := func() {
		delete(rs.awaitDrain, id)
		if len(rs.awaitDrain) == 0 && src.emitter.ListenerCount(EventData) > 0 {
			src.Resume()
		}
	}

	pause := func() {
		if !cleanedUp {
			if _, piped := rs.pipes[id]; piped {
				rs.awaitDrain[id] = struct{}{}
			}
			src.Pause()
		}
		if removeDrain == nil {
			removeDrain = dest.emitter.On(EventDrain, func(...any) { pipeOnDrain() })
		}
	}

	removeData := s.emitter.On(EventData, func(args ...any) {
		if !dest.Write(args[0]) {
			pause()
		}
	})

	var removeError func()
	removeError = dest.emitter.Prepend(EventError, func(args ...any) {
		err := argError(args)
		unpipe()
		removeError()
		if dest.emitter.ListenerCount(EventError) == 0 {
			if !dest.errorEmitted {
				dest.errorOrDestroy(err, false)
			} else {
				dest.emitter.Emit(EventError, err)
			}
		}
	})

	var removeClose, removeFinish func()
	removeClose = dest.emitter.Once(EventClose, func(...any) {
		removeFinish()
		unpipe()
	})
	removeFinish = dest.emitter.Once(EventFinish, func(...any) {
		removeClose()
		unpipe()
	})

	link.cleanup = func() {
		removeClose()
		removeFinish()
		if removeDrain != nil {
			removeDrain()
		}
		removeError()
		removeEnd()
		removeData()
		cleanedUp = true
		if _, waiting := rs.awaitDrain[id]; waiting {
			pipeOnDrain()
		}
		src.loop.NextTick(src.updateReadableListening)
	}

	dest.emitter.Emit(EventPipe, src)

	rs.readableListening = s.emitter.ListenerCount(EventReadable) > 0
	if dest.NeedDrain() {
		pause()
	} else if rs.flowing != Flowing {
		src.Resume()
	}
	return dest
}

// Unpipe detaches dest, or every destination when dest is nil. The source
// pauses once it has no destinations left.
func (s *Stream) Unpipe(dest *Stream) {
	rs := s.r
	if rs == nil || len(rs.pipes) == 0 {
		return
	}

	if dest == nil {
		order := rs.pipeOrder
		links := rs.pipes
		rs.pipeOrder = nil
		rs.pipes = make(map[uuid.UUID]*pipeLink)
		s.Pause()
		for _, id := range order {
			link := links[id]
			link.cleanup()
			link.dest.emitter.Emit(EventUnpipe, s)
		}
		return
	}

	link, ok := rs.pipes[dest.id]
	if !ok {
		return
	}
	delete(rs.pipes, dest.id)
	for i, id := range rs.pipeOrder {
		if id == dest.id {
			rs.pipeOrder = append(rs.pipeOrder[:i:i], rs.pipeOrder[i+1:]...)
			break
		}
	}
	if len(rs.pipes) == 0 {
		s.Pause()
	}
	link.cleanup()
	dest.emitter.Emit(EventUnpipe, s)
}

// Pipes returns the current pipe destinations in the order they were added.
func (s *Stream) Pipes() []*Stream {
	if s.r == nil {
		return nil
	}
	out := make([]*Stream, 0, len(s.r.pipeOrder))
	for _, id := range s.r.pipeOrder {
		out = append(out, s.r.pipes[id].dest)
	}
	return out
}
