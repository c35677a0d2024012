/*
Package adapters connects streams to code outside the event loop.

The web boundary is a pull-based reader and a push-based writer, both
blocking calls made from any goroutine:

	type WebReader interface {
		Read(ctx context.Context) (value any, done bool, err error)
	}

	type WebWriter interface {
		Write(ctx context.Context, value any) error
		Close(ctx context.Context) error
	}

FromWeb and FromWebWriter wrap such values as streams; ToWeb and ToWebWriter
expose a stream through them. A stream can be handed out only once: a second
ToWeb (or NewReader) on the same stream fails with ErrLocked, and likewise for
ToWebWriter.

FromIOReader and NewReader do the same for io.Reader and io.ReadCloser.

The To* functions must be called on the loop goroutine or before the loop
runs. The values they return are then used from other goroutines while the
loop is running; they keep the loop alive until they are closed.
*/
package adapters
