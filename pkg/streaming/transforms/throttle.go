package transforms

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Limiter grants permission to proceed. *rate.Limiter from
// golang.org/x/time/rate satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

type throttle struct {
	limiter Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

// Throttle creates an object-mode transform that forwards each chunk once
// limiter grants it. Waiting happens off the event loop; destroying the
// stream abandons the wait.
func Throttle(loop *eventloop.Loop, limiter Limiter) *stream.Stream {
	return ThrottleWithConfig(loop, limiter, objectConfig("throttle"))
}

// ThrottleWithConfig is Throttle with an explicit stream configuration.
func ThrottleWithConfig(loop *eventloop.Loop, limiter Limiter, config stream.Config) *stream.Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return stream.NewTransformWithConfig(loop, &throttle{limiter: limiter, ctx: ctx, cancel: cancel}, config)
}

func (t *throttle) Transform(s *stream.Stream, c stream.Chunk, done func(error, any)) {
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, t.limiter.Wait(t.ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			if t.ctx.Err() != nil {
				err = stream.ErrDestroyed
			}
			done(err, nil)
			return
		}
		done(nil, c.Data)
	})
}

func (t *throttle) Flush(_ *stream.Stream, done func(error, any)) {
	t.cancel()
	done(nil, nil)
}

func (t *throttle) Destroy(_ *stream.Stream, err error, done func(error)) {
	t.cancel()
	done(err)
}
