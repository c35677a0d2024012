package stream

import "github.com/vnykmshr/streamflow/pkg/events"

// On registers fn for event and returns a function that removes it.
// Attaching a "data" listener starts flowing mode unless the stream was
// explicitly paused; attaching a "readable" listener switches to pull mode.
func (s *Stream) On(event string, fn events.Handler) (remove func()) {
	return s.listenerAdded(event, s.emitter.On(event, fn))
}

// Once registers fn to run at most once.
func (s *Stream) Once(event string, fn events.Handler) (remove func()) {
	var removeOnce func()
	removeOnce = s.On(event, func(args ...any) {
		removeOnce()
		fn(args...)
	})
	return removeOnce
}

// Prepend registers fn ahead of the listeners already registered for event.
func (s *Stream) Prepend(event string, fn events.Handler) (remove func()) {
	return s.listenerAdded(event, s.emitter.Prepend(event, fn))
}

// ListenerCount returns the number of listeners registered for event.
func (s *Stream) ListenerCount(event string) int {
	return s.emitter.ListenerCount(event)
}

func (s *Stream) listenerAdded(event string, remove func()) func() {
	if s.r == nil {
		return remove
	}
	switch event {
	case EventData:
		s.beginFlowing()
	case EventReadable:
		s.beginReadable()
	default:
		return remove
	}
	removed := false
	return func() {
		if removed {
			return
		}
		removed = true
		remove()
		s.loop.NextTick(s.updateReadableListening)
	}
}

// OnData registers fn for "data" events and starts flowing mode.
func (s *Stream) OnData(fn func(chunk any)) (remove func()) {
	return s.On(EventData, func(args ...any) { fn(args[0]) })
}

// OnReadable registers fn for "readable" events and switches to pull mode.
func (s *Stream) OnReadable(fn func()) (remove func()) {
	return s.On(EventReadable, func(...any) { fn() })
}

// OnEnd registers fn for the "end" event.
func (s *Stream) OnEnd(fn func()) (remove func()) {
	return s.On(EventEnd, func(...any) { fn() })
}

// OnError registers fn for "error" events.
func (s *Stream) OnError(fn func(err error)) (remove func()) {
	return s.On(EventError, func(args ...any) { fn(argError(args)) })
}

// OnFinish registers fn for the "finish" event.
func (s *Stream) OnFinish(fn func()) (remove func()) {
	return s.On(EventFinish, func(...any) { fn() })
}

// OnDrain registers fn for "drain" events.
func (s *Stream) OnDrain(fn func()) (remove func()) {
	return s.On(EventDrain, func(...any) { fn() })
}

// OnClose registers fn for the "close" event.
func (s *Stream) OnClose(fn func()) (remove func()) {
	return s.On(EventClose, func(...any) { fn() })
}

// OnPause registers fn for "pause" events.
func (s *Stream) OnPause(fn func()) (remove func()) {
	return s.On(EventPause, func(...any) { fn() })
}

// OnResume registers fn for "resume" events.
func (s *Stream) OnResume(fn func()) (remove func()) {
	return s.On(EventResume, func(...any) { fn() })
}

// OnPipe registers fn for "pipe" events, which carry the source stream.
func (s *Stream) OnPipe(fn func(src *Stream)) (remove func()) {
	return s.On(EventPipe, func(args ...any) { fn(args[0].(*Stream)) })
}

// OnUnpipe registers fn for "unpipe" events, which carry the source stream.
func (s *Stream) OnUnpipe(fn func(src *Stream)) (remove func()) {
	return s.On(EventUnpipe, func(args ...any) { fn(args[0].(*Stream)) })
}

func argError(args []any) error {
	if len(args) == 0 {
		return nil
	}
	err, _ := args[0].(error)
	return err
}
