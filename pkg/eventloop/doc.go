/*
Package eventloop provides the cooperative scheduler that drives every stream
in streamflow.

All stream state is owned by a single goroutine: the one running Loop.Run (or
the goroutine that sets streams up before Run is called). Work reaches that
goroutine in two ways:

  - NextTick queues a microtask. Microtasks run in FIFO order and the queue is
    drained completely before any posted task runs. Streams use it to defer
    terminal notifications (end, finish, readable, drain) so a synchronous
    Push or Write never re-enters its caller.
  - Post queues a task from any goroutine. Asynchronous hooks finish their
    work elsewhere and Post the completion back.

Run keeps going while tasks are queued or while references taken with Ref are
outstanding, so a pending network read or timer keeps the loop alive:

	loop := eventloop.New()
	eventloop.Async(loop, func() ([]byte, error) {
		return fetch(ctx)
	}, func(data []byte, err error) {
		if err != nil {
			src.Destroy(err)
			return
		}
		src.Push(data)
	})
	if err := loop.Run(ctx); err != nil {
		log.Fatal(err)
	}

An error thrown with Throw (for example an "error" event nobody listens to)
stops Run, which returns an *UnhandledError. Panics inside tasks are recovered
and reported the same way.
*/
package eventloop
