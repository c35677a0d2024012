/*
Package writer provides a writable stream backed by any io.Writer.

Writer runs each write on its own goroutine and completes it back on the
event loop, so slow files, sockets or pipes never block other streams. The
stream machinery guarantees at most one write is in flight; writes issued
meanwhile are buffered and handed to the underlying writer as one batch.

# Quick Start

	loop := eventloop.New()
	file, _ := os.Create("output.txt")

	w := writer.New(loop, file)
	w.Write("Hello, ")
	w.Write("stream world!")
	w.End()

	if err := loop.Run(ctx); err != nil {
		log.Fatal(err)
	}

# Configuration

	config := writer.DefaultConfig()
	config.MaxRetries = 5
	config.RetryDelay = 50 * time.Millisecond
	config.Stream.HighWaterMark = 64 * 1024

	w := writer.NewWithConfig(loop, conn, config)

# Retries

A failed or short write is retried up to MaxRetries times, RetryDelay apart.
Destroying the stream aborts any pending retry. A write that still fails
errors the stream: the write callback and the "error" event both receive it.

# Completion

End flushes writers that implement Flush (bufio.Writer, gzip.Writer) and,
with AutoClose, closes writers that implement io.Closer before "finish" is
emitted. Destroy closes them too.

# Monitoring

	config.OnFlush = func(n int, d time.Duration) {
		log.Printf("wrote %d bytes in %v", n, d)
	}
	config.OnError = func(err error) {
		log.Printf("write failed: %v", err)
	}

	stats := w.Stats()
	fmt.Printf("%d bytes in %d writes, %d retries\n",
		stats.BytesWritten, stats.WriteCount, stats.RetryCount)

# Pipelines

Writer embeds *stream.Stream and can terminate any pipeline:

	pipeline.Run(func(err error) {
		if err != nil {
			log.Printf("pipeline failed: %v", err)
		}
	}, src, gz, writer.New(loop, file).Stream)
*/
package writer
