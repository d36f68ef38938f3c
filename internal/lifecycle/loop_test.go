package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopWaitsThenTicksUntilCancelled(t *testing.T) {
	r := &Runner{}
	var count int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.loop(ctx, "test", 5*time.Millisecond, 10*time.Millisecond, func(context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2))
}

func TestLoopSurvivesErrorsAndPanics(t *testing.T) {
	r := &Runner{}
	var count int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.loop(ctx, "test", time.Millisecond, 5*time.Millisecond, func(context.Context) error {
			n := atomic.AddInt32(&count, 1)
			if n%2 == 0 {
				panic("sweep blew up")
			}
			return errors.New("sweep failed")
		})
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3), "failures must not stop the loop")
}

func TestLoopStopsDuringInitialDelay(t *testing.T) {
	r := &Runner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.loop(ctx, "test", time.Hour, time.Hour, func(context.Context) error {
			t.Error("sweep should never run")
			return nil
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop during initial delay")
	}
}
