// Package async runs extraction jobs on a fixed pool of workers.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/scansmart/internal/acquire"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one extraction run for one acquired image.
type Job struct {
	RunID       string
	Image       acquire.ImageRef
	SubmittedAt time.Time
}

// Handler processes a job. ctx ends when the caller cancels the job or the
// per-job timeout fires.
type Handler func(ctx context.Context, job Job)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

type queued struct {
	job Job
	ctx context.Context
}

type WorkerQueue struct {
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan queued
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan queued, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerQueue(handle Handler, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		handle:  handle,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan queued, 16),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for item := range q.ch {
					q.run(workerID, item)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run always calls the handler, even for a job cancelled while queued, so
// every enqueued job is accounted for exactly once.
func (q *WorkerQueue) run(workerID int, item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, q.timeout)
	defer cancel()

	q.logger.Debug("processing job", "worker_id", workerID, "run_id", item.job.RunID,
		"wait_ms", time.Since(item.job.SubmittedAt).Milliseconds())
	q.handle(ctx, item.job)
}

// Enqueue hands job to the pool. ctx scopes the job itself: cancelling it
// cancels the job whether it is still queued or already running.
func (q *WorkerQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "run_id", job.RunID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	item := queued{job: job, ctx: ctx}
	select {
	case q.ch <- item:
		q.logger.Debug("queued extraction", "run_id", job.RunID, "path", job.Image.Path)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "run_id", job.RunID)
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
