package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(50 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, 200*time.Millisecond, 10*time.Millisecond)
	})
}

func TestRunErr(t *testing.T) {
	want := errors.New("boom")
	err := RunErr(t, runnerFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the run context")
		}
		return want
	}))
	AssertErrorIs(t, err, want)
}

func TestMockWriter(t *testing.T) {
	mw := NewMockWriter()
	mw.SetFailTimes(1)

	_, err := mw.Write([]byte("a"))
	AssertErrorIs(t, err, ErrSimulated)

	n, err := mw.Write([]byte("abc"))
	AssertNoError(t, err)
	AssertEqual(t, n, 3)

	mw.SetShortWrite(1)
	n, err = mw.Write([]byte("de"))
	AssertNoError(t, err)
	AssertEqual(t, n, 1)

	AssertEqual(t, mw.String(), "abcd")
	AssertEqual(t, mw.WriteCount(), 3)

	AssertNoError(t, mw.Close())
	AssertEqual(t, mw.Closed(), true)
}
