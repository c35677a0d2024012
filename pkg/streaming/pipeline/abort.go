package pipeline

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// AddAbortSignal ties s to ctx: when ctx is done before s finished, s is
// destroyed with ctx.Err(). A ctx that is already done destroys s at once.
// While ctx can be canceled the stream keeps its event loop running. It
// returns s.
//
// It must be called on the stream's loop goroutine or before the loop runs.
func AddAbortSignal(ctx context.Context, s *stream.Stream) *stream.Stream {
	if ctx.Done() == nil {
		return s
	}
	if err := ctx.Err(); err != nil {
		s.Destroy(err)
		return s
	}

	finished := false
	stop := watch(ctx, s.Loop(), func(err error) {
		if !finished {
			s.Destroy(err)
		}
	})
	Finished(s, FinishedOptions{}, func(error) {
		finished = true
		stop()
	})
	return s
}
