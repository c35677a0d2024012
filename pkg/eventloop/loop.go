package eventloop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UnhandledError is returned by Run when a task threw an error nobody handled.
type UnhandledError struct {
	Err   error
	Stack string
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("eventloop: unhandled error: %v", e.Err)
}

func (e *UnhandledError) Unwrap() error {
	return e.Err
}

// Config holds configuration options for a Loop.
type Config struct {
	// Logger receives loop diagnostics. Streams scheduled on the loop derive
	// their loggers from it. Default: disabled logger.
	Logger zerolog.Logger

	// Name identifies the loop in log output.
	// Default: "loop"
	Name string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Logger: zerolog.Nop(),
		Name:   "loop",
	}
}

// Loop is a single-goroutine cooperative scheduler.
type Loop struct {
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	ticks   []func()
	posted  []func()
	refs    int
	failure error
	wake    chan struct{}
}

// New creates a new Loop with default configuration.
func New() *Loop {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Loop with the specified configuration.
func NewWithConfig(config Config) *Loop {
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	return &Loop{
		config: config,
		logger: config.Logger.With().Str("loop", config.Name).Logger(),
		wake:   make(chan struct{}, 1),
	}
}

// Logger returns the loop's logger.
func (l *Loop) Logger() zerolog.Logger {
	return l.logger
}

// NextTick schedules fn to run after the current task and before any posted
// task. Microtasks run in the order they were scheduled.
func (l *Loop) NextTick(fn func()) {
	l.mu.Lock()
	l.ticks = append(l.ticks, fn)
	l.mu.Unlock()
	l.signal()
}

// Post schedules fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.signal()
}

// Ref keeps Run from returning until the returned release function is
// called. Release may be called more than once; only the first call counts.
func (l *Loop) Ref() (release func()) {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.refs--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// Throw reports an error that no one handled. Run stops at the end of the
// current task and returns an *UnhandledError wrapping err.
func (l *Loop) Throw(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	if l.failure == nil {
		l.failure = &UnhandledError{Err: err, Stack: string(debug.Stack())}
	}
	l.mu.Unlock()
	l.logger.Error().Err(err).Msg("unhandled error")
	l.signal()
}

// SetTimeout runs fn on the loop after d. The returned cancel function stops
// the timer if it has not fired yet.
func (l *Loop) SetTimeout(d time.Duration, fn func()) (cancel func()) {
	release := l.Ref()
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			release()
			fn()
		})
	})
	return func() {
		if timer.Stop() {
			release()
		}
	}
}

// Async runs work on its own goroutine and delivers its result to done on
// the loop goroutine. The loop stays alive until done has run.
func Async[T any](l *Loop, work func() (T, error), done func(T, error)) {
	release := l.Ref()
	go func() {
		var (
			val T
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("eventloop: async work panicked: %v", r)
				}
			}()
			val, err = work()
		}()
		l.Post(func() {
			release()
			done(val, err)
		})
	}()
}

// Run executes queued tasks until the loop is idle, ctx is done, or an
// unhandled error is thrown.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.drainTicks(); err != nil {
			return err
		}

		if fn := l.popPosted(); fn != nil {
			if err := l.call(fn); err != nil {
				return err
			}
			continue
		}

		if l.idle() {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending reports the number of queued tasks and outstanding references.
func (l *Loop) Pending() (tasks, refs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ticks) + len(l.posted), l.refs
}

func (l *Loop) drainTicks() error {
	for {
		l.mu.Lock()
		if len(l.ticks) == 0 {
			l.mu.Unlock()
			return l.err()
		}
		fn := l.ticks[0]
		l.ticks[0] = nil
		l.ticks = l.ticks[1:]
		l.mu.Unlock()

		if err := l.call(fn); err != nil {
			return err
		}
	}
}

func (l *Loop) popPosted() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.posted) == 0 {
		return nil
	}
	fn := l.posted[0]
	l.posted[0] = nil
	l.posted = l.posted[1:]
	return fn
}

func (l *Loop) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ticks) == 0 && len(l.posted) == 0 && l.refs == 0
}

func (l *Loop) call(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			l.mu.Lock()
			if l.failure == nil {
				l.failure = &UnhandledError{Err: perr, Stack: string(debug.Stack())}
			}
			l.mu.Unlock()
			l.logger.Error().Err(perr).Msg("task panicked")
			err = l.err()
		}
	}()
	fn()
	return l.err()
}

func (l *Loop) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failure
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
