package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueRoutesJobsByType(t *testing.T) {
	router := NewRouter()
	done := make(chan string, 2)
	router.Handle("appointment.booked", func(ctx context.Context, job Job) error {
		done <- "booked:" + job.ID
		return nil
	})
	router.Handle("appointment.cancelled", func(ctx context.Context, job Job) error {
		done <- "cancelled:" + job.ID
		return nil
	})

	q := NewQueue("test", router.Dispatch, QueueConfig{Workers: 1, Logger: zap.NewNop()})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "appointment.booked"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "appointment.cancelled"}))

	got := []string{<-done, <-done}
	assert.ElementsMatch(t, []string{"booked:a", "cancelled:b"}, got)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}

	q := NewQueue("retry", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x", Type: "t"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))

	err := NewRouter().Dispatch(context.Background(), Job{Type: "unknown"})
	assert.Error(t, err)
}
