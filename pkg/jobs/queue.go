// Package jobs runs background work, such as Drive uploads, on an in-process
// worker pool with retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is reported for jobs that were still pending or retrying when
// the queue shut down.
var ErrStopped = errors.New("queue stopped")

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err so the queue fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Job is one unit of queued work. Attempt counts failed runs so far.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// FailureHandler receives jobs that will not run again.
type FailureHandler func(Job, error)

// QueueConfig tunes the worker pool. Zero values get defaults.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
	OnFailure     FailureHandler
}

// Stats is a point-in-time view of queue activity.
type Stats struct {
	Pending   int    `json:"pending"`
	Running   int64  `json:"running"`
	Retrying  int64  `json:"retrying"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

// Queue dispatches jobs to a fixed set of goroutines.
type Queue struct {
	name   string
	handle Handler
	cfg    QueueConfig
	log    *zap.Logger
	jobs   chan Job

	running   atomic.Int64
	retrying  atomic.Int64
	processed atomic.Uint64
	failed    atomic.Uint64

	lifecycle sync.Mutex
	started   bool
	ctx       context.Context
	cancel    context.CancelFunc

	// send guards closed so nothing lands in the buffer after Stop drains it.
	send   sync.RWMutex
	closed bool

	workers sync.WaitGroup
	timers  sync.WaitGroup
}

// NewQueue builds an idle queue; call Start before enqueuing.
func NewQueue(name string, handle Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay * 16
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		name:   name,
		handle: handle,
		cfg:    cfg,
		log:    log.With(zap.String("queue", name)),
		jobs:   make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	for i := 1; i <= q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work(i)
	}
	q.log.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels running jobs, waits for the workers, and hands every job
// that did not finish to OnFailure with ErrStopped.
func (q *Queue) Stop() {
	q.lifecycle.Lock()
	if !q.started || q.cancel == nil {
		q.lifecycle.Unlock()
		return
	}
	cancel := q.cancel
	q.cancel = nil
	q.lifecycle.Unlock()

	cancel()
	q.send.Lock()
	q.closed = true
	q.send.Unlock()

	q.workers.Wait()
	q.timers.Wait()
	for {
		select {
		case job := <-q.jobs:
			q.fail(job, ErrStopped)
		default:
			q.log.Info("queue stopped", zap.Uint64("processed", q.processed.Load()), zap.Uint64("failed", q.failed.Load()))
			return
		}
	}
}

// Enqueue adds a job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.lifecycle.Lock()
	started, ctx := q.started, q.ctx
	q.lifecycle.Unlock()
	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}

	q.send.RLock()
	defer q.send.RUnlock()
	if q.closed {
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
}

// Stats reports depth, in-flight work and outcome counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   len(q.jobs),
		Running:   q.running.Load(),
		Retrying:  q.retrying.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *Queue) work(id int) {
	defer q.workers.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(id, job)
		}
	}
}

func (q *Queue) run(worker int, job Job) {
	q.running.Add(1)
	started := time.Now()
	err := q.handle(q.ctx, job)
	q.running.Add(-1)

	if err == nil {
		q.processed.Add(1)
		q.log.Debug("job done",
			zap.String("job_id", job.ID),
			zap.Int("worker", worker),
			zap.Duration("took", time.Since(started)))
		return
	}

	job.Attempt++
	switch {
	case q.ctx.Err() != nil:
		q.fail(job, fmt.Errorf("%w: %v", ErrStopped, err))
	case IsPermanent(err), job.Attempt > q.cfg.MaxRetries:
		q.fail(job, err)
	default:
		q.retryLater(job, err)
	}
}

// backoff doubles the delay per attempt up to MaxRetryDelay.
func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt && delay < q.cfg.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}
	return delay
}

func (q *Queue) retryLater(job Job, cause error) {
	delay := q.backoff(job.Attempt)
	q.log.Warn("job failed, retrying",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	q.retrying.Add(1)
	q.timers.Add(1)
	go func() {
		defer q.timers.Done()
		defer q.retrying.Add(-1)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.fail(job, ErrStopped)
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.fail(job, err)
			}
		}
	}()
}

func (q *Queue) fail(job Job, err error) {
	q.failed.Add(1)
	q.log.Error("job abandoned",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))
	if q.cfg.OnFailure != nil {
		q.cfg.OnFailure(job, err)
	}
}
