package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// maxReadSize caps a single read from an io.Reader.
const maxReadSize = 64 * 1024

type ioSource struct {
	r io.Reader
}

// FromIOReader creates a byte-mode readable stream that reads from r. Reads
// run off the event loop. When r is an io.Closer it is closed on destroy,
// which the stream does by itself after the end of input.
func FromIOReader(loop *eventloop.Loop, r io.Reader) *stream.Stream {
	cfg := stream.DefaultConfig()
	cfg.Name = "io-reader"
	return FromIOReaderWithConfig(loop, r, cfg)
}

// FromIOReaderWithConfig is FromIOReader with an explicit stream
// configuration.
func FromIOReaderWithConfig(loop *eventloop.Loop, r io.Reader, config stream.Config) *stream.Stream {
	config.ObjectMode = false
	config.ReadableObjectMode = false
	return stream.NewReadableWithConfig(loop, &ioSource{r: r}, config)
}

func (src *ioSource) Pull(s *stream.Stream, size int) {
	if size <= 0 || size > maxReadSize {
		size = maxReadSize
	}
	eventloop.Async(s.Loop(), func() ([]byte, error) {
		buf := make([]byte, size)
		n, err := src.r.Read(buf)
		return buf[:n], err
	}, func(data []byte, err error) {
		if s.Destroyed() {
			return
		}
		if len(data) > 0 {
			s.Push(data)
		}
		switch {
		case errors.Is(err, io.EOF):
			s.Push(nil)
		case err != nil:
			s.Destroy(fmt.Errorf("read: %w", err))
		case len(data) == 0:
			src.Pull(s, size)
		}
	})
}

func (src *ioSource) Destroy(s *stream.Stream, err error, done func(error)) {
	c, ok := src.r.(io.Closer)
	if !ok {
		done(err)
		return
	}
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, c.Close()
	}, func(_ struct{}, cerr error) {
		if err == nil {
			err = cerr
		}
		done(err)
	})
}

// reader exposes a byte-mode readable stream as an io.ReadCloser.
type reader struct {
	it   *stream.Iterator
	rest []byte
	err  error
}

// NewReader returns an io.ReadCloser over the readable side of s. Closing
// it before the end destroys s. It locks s like ToWeb.
func NewReader(s *stream.Stream) (io.ReadCloser, error) {
	if !s.IsReadable() {
		return nil, stream.ErrNotReadable
	}
	if err := lock(s, true); err != nil {
		return nil, err
	}
	return &reader{it: s.Iterator()}, nil
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		v, ok, err := r.it.Next(context.Background())
		switch {
		case err != nil:
			r.err = err
		case !ok:
			r.err = io.EOF
		default:
			b, cerr := toBytes(v)
			if cerr != nil {
				r.err = cerr
				r.it.Close()
			}
			r.rest = b
		}
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

func (r *reader) Close() error {
	r.it.Close()
	return nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("%w: got %T", stream.ErrInvalidChunk, v)
	}
}
