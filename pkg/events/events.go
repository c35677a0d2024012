// Package events provides the synchronous event notification primitive that
// streams use to deliver data, end, error and lifecycle notifications.
package events

import "fmt"

// ErrorEvent is the event name that receives special treatment when emitted
// without listeners.
const ErrorEvent = "error"

// Handler receives the arguments passed to Emit.
type Handler func(args ...any)

type listener struct {
	fn      Handler
	once    bool
	removed bool
}

// Emitter dispatches named events to registered handlers. It is not safe for
// concurrent use; streams only touch it from their event loop.
type Emitter struct {
	listeners map[string][]*listener
	unhandled func(err error)
}

// New creates an Emitter. unhandled is called when an "error" event is
// emitted with no listener registered; if it is nil Emit panics instead.
func New(unhandled func(err error)) *Emitter {
	return &Emitter{
		listeners: make(map[string][]*listener),
		unhandled: unhandled,
	}
}

// On registers fn for name and returns a function that removes it.
func (e *Emitter) On(name string, fn Handler) (remove func()) {
	return e.add(name, &listener{fn: fn}, false)
}

// Once registers fn to run at most once.
func (e *Emitter) Once(name string, fn Handler) (remove func()) {
	return e.add(name, &listener{fn: fn, once: true}, false)
}

// Prepend registers fn ahead of every handler already registered for name.
func (e *Emitter) Prepend(name string, fn Handler) (remove func()) {
	return e.add(name, &listener{fn: fn}, true)
}

// Emit calls every handler registered for name, in registration order, with
// args. It reports whether any handler was registered. Handlers added during
// emission are not called for this emission.
func (e *Emitter) Emit(name string, args ...any) bool {
	ls := e.listeners[name]
	if len(ls) == 0 {
		if name == ErrorEvent {
			e.throw(args)
		}
		return false
	}

	snapshot := make([]*listener, len(ls))
	copy(snapshot, ls)
	for _, l := range snapshot {
		if l.removed {
			continue
		}
		if l.once {
			e.remove(name, l)
		}
		l.fn(args...)
	}
	return true
}

// ListenerCount returns the number of handlers registered for name.
func (e *Emitter) ListenerCount(name string) int {
	return len(e.listeners[name])
}

// RemoveAll removes every handler registered for name.
func (e *Emitter) RemoveAll(name string) {
	for _, l := range e.listeners[name] {
		l.removed = true
	}
	delete(e.listeners, name)
}

func (e *Emitter) add(name string, l *listener, front bool) func() {
	if front {
		e.listeners[name] = append([]*listener{l}, e.listeners[name]...)
	} else {
		e.listeners[name] = append(e.listeners[name], l)
	}
	return func() { e.remove(name, l) }
}

func (e *Emitter) remove(name string, target *listener) {
	if target.removed {
		return
	}
	target.removed = true
	ls := e.listeners[name]
	for i, l := range ls {
		if l == target {
			e.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(e.listeners[name]) == 0 {
		delete(e.listeners, name)
	}
}

func (e *Emitter) throw(args []any) {
	var err error
	if len(args) > 0 {
		if ae, ok := args[0].(error); ok {
			err = ae
		} else {
			err = fmt.Errorf("unhandled error event: %v", args[0])
		}
	} else {
		err = fmt.Errorf("unhandled error event")
	}
	if e.unhandled == nil {
		panic(err)
	}
	e.unhandled(err)
}
