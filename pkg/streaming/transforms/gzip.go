package transforms

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// gzipper compresses written chunks into an in-memory buffer and pushes
// whatever the compressor has emitted so far.
type gzipper struct {
	buf bytes.Buffer
	zw  *gzip.Writer
	in  int
}

// Gzip creates a byte-mode transform that gzip-compresses its input at the
// given level (gzip.DefaultCompression, gzip.BestSpeed, ...). The gzip
// trailer is emitted when the writable side ends.
func Gzip(loop *eventloop.Loop, level int) (*stream.Stream, error) {
	cfg := stream.DefaultConfig()
	cfg.Name = "gzip"
	return GzipWithConfig(loop, level, cfg)
}

// GzipWithConfig is Gzip with an explicit stream configuration. Object mode
// is not supported.
func GzipWithConfig(loop *eventloop.Loop, level int, config stream.Config) (*stream.Stream, error) {
	g := &gzipper{}
	zw, err := gzip.NewWriterLevel(&g.buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	g.zw = zw
	config.ObjectMode = false
	config.ReadableObjectMode = false
	config.WritableObjectMode = false
	return stream.NewTransformWithConfig(loop, g, config), nil
}

func (g *gzipper) Transform(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
	data := c.Bytes()
	g.in += len(data)
	if _, err := g.zw.Write(data); err != nil {
		done(err, nil)
		return
	}
	done(nil, g.drain())
}

func (g *gzipper) Flush(s *stream.Stream, done func(error, any)) {
	if err := g.zw.Close(); err != nil {
		done(err, nil)
		return
	}
	out := g.drain()
	s.Logger().Debug().Int("in", g.in).Msg("gzip stream closed")
	done(nil, out)
}

// drain returns a copy of the compressed bytes produced so far, or nil.
func (g *gzipper) drain() any {
	if g.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(g.buf.Bytes())
	g.buf.Reset()
	return out
}
