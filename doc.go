/*
Package streamflow provides Node-style streams for Go: Readable, Writable,
Duplex, Transform and PassThrough streams running on a single-goroutine event
loop, connected with pipe, pipeline and compose.

Core (pkg/eventloop, pkg/events, pkg/buffer):
  - eventloop: deferred execution, goroutine handoff and timers
  - events: named listener registry
  - buffer: byte and string encodings

Streaming (pkg/streaming):
  - stream: the stream state machines, pipe and iteration
  - pipeline: pipeline, finished and compose
  - sources: slice, channel, generator and cron readables
  - transforms: map/filter operators, gzip and throttling
  - writer: io.Writer-backed writable with retries
  - adapters: web-style reader/writer and io boundaries
  - redisstream: Redis Streams source and sink

Support (pkg/config, pkg/logging, pkg/metrics):
  - config: defaults, config files and STREAMFLOW_* environment variables
  - logging: zerolog loggers for loops, streams and pipelines
  - metrics: Prometheus stream and pipeline counters

Example usage:

	import (
		"github.com/vnykmshr/streamflow/pkg/eventloop"
		"github.com/vnykmshr/streamflow/pkg/streaming/pipeline"
		"github.com/vnykmshr/streamflow/pkg/streaming/sources"
		"github.com/vnykmshr/streamflow/pkg/streaming/transforms"
		"github.com/vnykmshr/streamflow/pkg/streaming/writer"
	)

	loop := eventloop.New()
	src := sources.FromSlice(loop, []string{"a\n", "b\n"})
	gz, _ := transforms.Gzip(loop, gzip.DefaultCompression)
	dst := writer.New(loop, file)

	pipeline.Run(onDone, src, gz, dst.Stream)
	err := loop.Run(ctx)
*/
package streamflow
