package stream

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Asynchronous hooks run on eventloop.Async goroutines, which must all have
// returned by the time the loop goes idle.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
