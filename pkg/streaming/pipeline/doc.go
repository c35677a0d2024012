/*
Package pipeline connects streams and tracks their completion.

Run pipes a source through any number of transforms into a destination and
reports a single outcome. When any participant fails, every participant is
destroyed with that error and the callback receives it, exactly once.

# Quick Start

	loop := eventloop.New()

	src := sources.FromSlice(loop, []string{"a", "b", "c"})
	upper := transforms.Map(loop, strings.ToUpper)
	dst := writer.New(loop, os.Stdout)

	pipeline.Run(func(err error) {
		if err != nil {
			log.Printf("pipeline failed: %v", err)
		}
	}, src, upper, dst.Stream)

	if err := loop.Run(context.Background()); err != nil {
		log.Fatal(err)
	}

# Cancellation

RunContext destroys every participant with ctx.Err() once ctx is done:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipeline.RunContext(ctx, onDone, src, dst)

# Completion

Finished observes a single stream:

	detach := pipeline.Finished(s, pipeline.FinishedOptions{}, func(err error) {
		if errors.Is(err, pipeline.ErrPrematureClose) {
			// closed before "end" or "finish"
		}
	})
	defer detach()

# Composition

Compose turns a chain of streams into one duplex stream:

	double, _ := pipeline.Compose(parse, multiply, format)
	src.Pipe(double).Pipe(dst)

Pipeline outcomes are counted by the tail stream's metrics registry and
logged under the "pipeline" component.
*/
package pipeline
