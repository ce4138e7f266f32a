package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerQueueRunsJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewWorkerQueue(func(_ context.Context, job Job) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.RunID)
	}, nil, WithWorkers(1))

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{RunID: "a"}))
	require.NoError(t, q.Enqueue(ctx, Job{RunID: "b"}))
	q.Shutdown(ctx)

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestWorkerQueueHandsOverCancelledJobs(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	q := NewWorkerQueue(func(ctx context.Context, job Job) {
		if job.RunID == "blocker" {
			<-release
		}
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			seen = append(seen, job.RunID+":cancelled")
			return
		}
		seen = append(seen, job.RunID)
	}, nil, WithWorkers(1))

	bg := context.Background()
	require.NoError(t, q.Enqueue(bg, Job{RunID: "blocker"}))
	stale, cancel := context.WithCancel(bg)
	require.NoError(t, q.Enqueue(stale, Job{RunID: "stale"}))
	cancel()
	close(release)
	q.Shutdown(bg)

	assert.Equal(t, []string{"blocker", "stale:cancelled"}, seen)
}

func TestWorkerQueueCancelsRunningJob(t *testing.T) {
	errs := make(chan error, 1)
	started := make(chan struct{})
	q := NewWorkerQueue(func(ctx context.Context, _ Job) {
		close(started)
		<-ctx.Done()
		errs <- ctx.Err()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, Job{RunID: "r"}))
	<-started
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled")
	}
	q.Shutdown(context.Background())
}

func TestWorkerQueueTimeout(t *testing.T) {
	errs := make(chan error, 1)
	q := NewWorkerQueue(func(ctx context.Context, _ Job) {
		<-ctx.Done()
		errs <- ctx.Err()
	}, nil, WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), Job{RunID: "slow"}))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not fire")
	}
	q.Shutdown(context.Background())
}

func TestWorkerQueueRejectsAfterShutdown(t *testing.T) {
	q := NewWorkerQueue(func(context.Context, Job) {}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{RunID: "late"}), ErrQueueClosed)
}
