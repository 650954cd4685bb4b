package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorker_EnqueueAsyncAndDrain(t *testing.T) {
	w := NewWorker(2)
	defer w.Shutdown()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		w.EnqueueAsync("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	w.EnqueueAsync("fail", func(ctx context.Context) error {
		return errors.New("nope")
	})
	w.EnqueueAsync("panic", func(ctx context.Context) error {
		panic("boom")
	})

	w.Drain()

	stats := w.GetStats()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(7), stats.CompletedJobs)
	assert.Equal(t, int64(2), stats.FailedJobs)
	assert.Equal(t, 0, stats.ActiveJobs)
}

func TestWorker_EnqueueRunsOnPool(t *testing.T) {
	w := NewWorker(1)

	done := make(chan struct{})
	w.Enqueue(func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	w.Shutdown()
}

func TestWorker_ScheduleEveryImmediate(t *testing.T) {
	w := NewWorker(1)

	var runs atomic.Int32
	w.ScheduleEveryImmediate("tick", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	w.Shutdown()
}
