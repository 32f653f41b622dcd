// Package async wraps the pipeline service in a bounded worker pool for
// fire-and-forget scan submission.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/pipeline"
)

var (
	ErrQueueFull   = errors.New("scan queue is full")
	ErrQueueClosed = errors.New("scan queue is shut down")
)

// Job is one queued scan plus its submission metadata.
type Job struct {
	Scan        entity.RawScan
	RequestID   string
	SubmittedAt time.Time
}

// Queue feeds queued scans to pipeline workers. Enqueue never blocks; a
// full queue is the caller's problem to retry.
type Queue struct {
	svc     *pipeline.Service
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(svc *pipeline.Service, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		svc:     svc,
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					if job.RequestID != "" {
						ctx = common.WithRequestID(ctx, job.RequestID)
					}
					_, err := q.svc.ProcessScan(ctx, job.Scan)
					cancel()

					if err != nil {
						q.logger.Error("queued scan failed",
							"worker_id", workerID, "scan_id", job.Scan.ID, "error", err)
					} else {
						q.logger.Info("queued scan processed",
							"worker_id", workerID, "scan_id", job.Scan.ID,
							"wait_ms", time.Since(job.SubmittedAt).Milliseconds())
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("scan queued", "scan_id", job.Scan.ID, "depth", len(q.ch))
		return nil
	default:
		q.logger.Warn("queue full, rejecting scan", "scan_id", job.Scan.ID)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for in-flight work until ctx expires.
func (q *Queue) Shutdown(ctx context.Context) {
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
