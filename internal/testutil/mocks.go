package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrSimulated is returned by MockWriter when told to fail.
var ErrSimulated = errors.New("simulated error")

// MockWriter is a test writer that can simulate delays, transient failures,
// permanent failures and partial writes.
type MockWriter struct {
	buf        *bytes.Buffer
	mu         sync.Mutex
	writeDelay time.Duration
	failTimes  int
	shortBy    int
	writeCount int
	closed     bool
	err        error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer with the configured behavior.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.err != nil {
		return 0, mw.err
	}

	if mw.failTimes > 0 {
		mw.failTimes--
		return 0, ErrSimulated
	}

	if mw.shortBy > 0 && len(p) > mw.shortBy {
		n := len(p) - mw.shortBy
		mw.shortBy = 0
		return mw.buf.Write(p[:n])
	}

	return mw.buf.Write(p)
}

// Close records that the writer was closed.
func (mw *MockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closed = true
	return nil
}

// Closed reports whether Close was called.
func (mw *MockWriter) Closed() bool {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.closed
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// SetFailTimes makes the next n writes fail with ErrSimulated.
func (mw *MockWriter) SetFailTimes(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failTimes = n
}

// SetShortWrite makes the next write that is longer than n bytes accept all
// but its last n bytes.
func (mw *MockWriter) SetShortWrite(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shortBy = n
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.err = err
}
