/*
Package streaming groups the stream engine and the components built on it.

  - stream: Readable, Writable, Duplex, Transform and PassThrough streams
  - pipeline: Run, Finished and Compose over any number of streams
  - sources: readables over slices, channels, generators and cron schedules
  - transforms: typed operators, gzip compression and rate limiting
  - writer: writable backed by an io.Writer, with retries
  - adapters: web-style reader/writer and io boundaries
  - redisstream: Redis Streams source and sink

Basic usage:

	loop := eventloop.New()
	src := sources.FromSlice(loop, records)
	out := writer.New(loop, conn)

	pipeline.Run(func(err error) {
		if err != nil {
			log.Printf("pipeline failed: %v", err)
		}
	}, src, transforms.Map(loop, encode), out.Stream)

	err := loop.Run(ctx)

Every stream belongs to one event loop and must only be touched from it.
Blocking I/O runs on goroutines started through eventloop.Async.
*/
package streaming
