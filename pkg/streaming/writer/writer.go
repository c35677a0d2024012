package writer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Stats holds statistics about writer performance.
type Stats struct {
	// BytesWritten is the total number of bytes written.
	BytesWritten int64

	// WriteCount is the total number of completed write operations. A
	// batched write counts once.
	WriteCount int64

	// FlushCount is the number of times the underlying writer was flushed.
	FlushCount int64

	// RetryCount is the number of retried write attempts.
	RetryCount int64

	// ErrorCount is the total number of write operations that failed after
	// all retries.
	ErrorCount int64

	// AverageWriteTime is the average time per write operation.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time spent writing.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last write operation.
	LastWriteTime time.Time
}

// Config holds configuration options for Writer.
type Config struct {
	// MaxRetries is the number of times to retry failed write operations.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// AutoClose closes the underlying writer, if it is an io.Closer, after
	// "finish" or on destroy.
	// Default: true
	AutoClose bool

	// OnError is called when a write fails after all retries.
	OnError func(error)

	// OnFlush is called after every completed write operation.
	OnFlush func(bytesWritten int, duration time.Duration)

	// Stream configures the writable side.
	Stream stream.Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	cfg := stream.DefaultConfig()
	cfg.Name = "writer"
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		AutoClose:  true,
		Stream:     cfg,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegative("writer", "MaxRetries", c.MaxRetries); err != nil {
		return err
	}
	return c.Stream.Validate()
}

// flusher is implemented by buffered writers such as bufio.Writer.
type flusher interface {
	Flush() error
}

// Writer is a writable stream backed by an io.Writer. Each write runs on
// its own goroutine so blocking I/O never stalls the event loop; the stream
// guarantees at most one write is in flight.
type Writer struct {
	*stream.Stream

	underlying io.Writer
	config     Config

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	stats   Stats
	statsMu sync.RWMutex
}

// New creates a Writer with default configuration.
func New(loop *eventloop.Loop, w io.Writer) *Writer {
	return NewWithConfig(loop, w, DefaultConfig())
}

// NewWithConfig creates a Writer with the specified configuration.
func NewWithConfig(loop *eventloop.Loop, w io.Writer, config Config) *Writer {
	def := DefaultConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	wr := &Writer{
		underlying: w,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
	}
	wr.Stream = stream.NewWritableWithConfig(loop, (*sink)(wr), config.Stream)
	return wr
}

// Stats returns statistics about the writer's performance.
func (wr *Writer) Stats() Stats {
	wr.statsMu.RLock()
	defer wr.statsMu.RUnlock()

	stats := wr.stats
	if stats.WriteCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.WriteCount)
	}
	return stats
}

// sink adapts Writer to the stream hooks without exposing them on Writer.
type sink Writer

func (sk *sink) Write(s *stream.Stream, chunk stream.Chunk, done func(error)) {
	sk.write(s, chunk.Bytes(), done)
}

func (sk *sink) Writev(s *stream.Stream, chunks []stream.Chunk, done func(error)) {
	size := 0
	for _, c := range chunks {
		size += len(c.Bytes())
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c.Bytes()...)
	}
	sk.write(s, data, done)
}

func (sk *sink) write(s *stream.Stream, data []byte, done func(error)) {
	wr := (*Writer)(sk)
	start := time.Now()
	eventloop.Async(s.Loop(), func() (int, error) {
		return wr.writeWithRetries(s, data)
	}, func(n int, err error) {
		duration := time.Since(start)
		wr.updateStats(func(st *Stats) {
			st.WriteCount++
			st.BytesWritten += int64(n)
			st.TotalWriteTime += duration
			st.LastWriteTime = time.Now()
			if err != nil {
				st.ErrorCount++
			}
		})
		if wr.config.OnFlush != nil {
			wr.config.OnFlush(n, duration)
		}
		if err != nil && wr.config.OnError != nil {
			wr.config.OnError(err)
		}
		done(err)
	})
}

// Final flushes buffered writers and closes the underlying writer.
func (sk *sink) Final(s *stream.Stream, done func(error)) {
	wr := (*Writer)(sk)
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		if f, ok := wr.underlying.(flusher); ok {
			if err := f.Flush(); err != nil {
				return struct{}{}, err
			}
			wr.updateStats(func(st *Stats) { st.FlushCount++ })
		}
		return struct{}{}, wr.close()
	}, func(_ struct{}, err error) {
		done(err)
	})
}

// Destroy aborts pending retries and closes the underlying writer.
func (sk *sink) Destroy(s *stream.Stream, err error, done func(error)) {
	wr := (*Writer)(sk)
	wr.cancel()
	if !wr.config.AutoClose {
		done(err)
		return
	}
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		return struct{}{}, wr.close()
	}, func(_ struct{}, cerr error) {
		if err == nil {
			err = cerr
		}
		done(err)
	})
}

func (wr *Writer) close() error {
	wr.statsMu.Lock()
	if wr.closed || !wr.config.AutoClose {
		wr.statsMu.Unlock()
		return nil
	}
	wr.closed = true
	wr.statsMu.Unlock()

	if c, ok := wr.underlying.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// writeWithRetries writes data with retry logic.
func (wr *Writer) writeWithRetries(s *stream.Stream, data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= wr.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wr.updateStats(func(st *Stats) { st.RetryCount++ })
			s.Logger().Debug().Err(lastErr).Int("attempt", attempt).Msg("retrying write")

			timer := time.NewTimer(wr.config.RetryDelay)
			select {
			case <-timer.C:
			case <-wr.ctx.Done():
				timer.Stop()
				return totalWritten, stream.ErrDestroyed
			}
		}

		written, err := wr.underlying.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			continue
		}

		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}

// updateStats safely updates statistics.
func (wr *Writer) updateStats(updater func(*Stats)) {
	wr.statsMu.Lock()
	defer wr.statsMu.Unlock()
	updater(&wr.stats)
}
