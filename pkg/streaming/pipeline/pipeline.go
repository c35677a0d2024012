package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	gferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/logging"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

const module = "pipeline"

// Outcome labels used for pipeline metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Run pipes streams into each other in order and calls cb exactly once,
// after every participant finished or, on the first failure, after every
// participant was destroyed with that failure. It returns the last stream
// so readable tails can be consumed further.
//
// All streams must share one event loop, and Run must be called on that
// loop's goroutine or before the loop runs.
func Run(cb func(err error), streams ...*stream.Stream) *stream.Stream {
	return RunContext(context.Background(), cb, streams...)
}

// RunContext is Run with cancellation: when ctx is done before the pipeline
// completes, every participant is destroyed with ctx.Err(). While ctx can be
// canceled the pipeline keeps its event loop running.
func RunContext(ctx context.Context, cb func(err error), streams ...*stream.Stream) *stream.Stream {
	if cb == nil {
		cb = func(error) {}
	}
	var last *stream.Stream
	if len(streams) > 0 {
		last = streams[len(streams)-1]
	}
	if err := validate(streams); err != nil {
		fail(streams, cb, err)
		return last
	}

	loop := streams[0].Loop()
	logger := logging.Component(loop.Logger(), module).With().
		Int("streams", len(streams)).
		Str("tail", last.Name()).
		Logger()
	reg := last.Metrics()
	start := time.Now()

	var (
		firstErr error
		pending  = len(streams)
		done     bool
		stop     = func() {}
	)

	abort := func(err error) {
		if firstErr != nil {
			return
		}
		firstErr = err
		for _, s := range streams {
			s.Destroy(err)
		}
	}

	complete := func(err error) {
		if err != nil {
			abort(err)
		}
		pending--
		if pending > 0 || done {
			return
		}
		done = true
		stop()

		elapsed := time.Since(start)
		outcome := OutcomeSuccess
		switch {
		case errors.Is(firstErr, context.Canceled), errors.Is(firstErr, context.DeadlineExceeded):
			outcome = OutcomeCanceled
		case firstErr != nil:
			outcome = OutcomeError
		}
		reg.PipelineDone(outcome, elapsed.Seconds())
		if firstErr != nil {
			logger.Warn().Err(firstErr).Dur("duration", elapsed).Msg("pipeline failed")
		} else {
			logger.Debug().Dur("duration", elapsed).Msg("pipeline finished")
		}
		cb(firstErr)
	}

	for i, s := range streams {
		reading := i < len(streams)-1
		writing := i > 0
		Finished(s, FinishedOptions{Readable: &reading, Writable: &writing}, complete)
	}
	for i := 0; i < len(streams)-1; i++ {
		streams[i].Pipe(streams[i+1])
	}

	if ctx.Done() != nil {
		stop = watch(ctx, loop, func(err error) {
			if !done {
				abort(err)
			}
		})
	}
	return last
}

// RunAsync runs the pipeline and returns a channel that receives its result.
func RunAsync(streams ...*stream.Stream) <-chan error {
	result := make(chan error, 1)
	Run(func(err error) {
		result <- err
		close(result)
	}, streams...)
	return result
}

// watch holds the loop open until stop is called and hands ctx's error to
// onCancel on the loop goroutine.
func watch(ctx context.Context, loop *eventloop.Loop, onCancel func(error)) (stop func()) {
	release := loop.Ref()
	quit := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			loop.Post(func() { onCancel(ctx.Err()) })
		case <-quit:
		}
	}()
	return func() {
		close(quit)
		release()
	}
}

func validate(streams []*stream.Stream) error {
	if err := validation.ValidateMinCount(module, "streams", len(streams), 2); err != nil {
		return fmt.Errorf("%w: %w", gferrors.ErrMissingArgs, err)
	}
	for i, s := range streams {
		field := fmt.Sprintf("streams[%d]", i)
		switch {
		case s == nil:
			return gferrors.NewValidationError(module, field, nil, "cannot be nil")
		case s.Loop() != streams[0].Loop():
			return gferrors.NewValidationError(module, field, s.Name(), "runs on a different event loop").
				WithHint("create every stream of a pipeline on the same loop")
		case i < len(streams)-1 && !s.IsReadable():
			return fmt.Errorf("%s %s: %w", field, s.Name(), stream.ErrNotReadable)
		case i > 0 && !s.IsWritable():
			return fmt.Errorf("%s %s: %w", field, s.Name(), stream.ErrNotWritable)
		}
	}
	return nil
}

// fail reports err through cb, deferred on the first available loop.
func fail(streams []*stream.Stream, cb func(error), err error) {
	for _, s := range streams {
		if s != nil {
			s.Loop().NextTick(func() { cb(err) })
			return
		}
	}
	cb(err)
}
