// Package inmemory runs side-effect jobs on goroutines inside the API
// process. Queued jobs do not survive a restart.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers    = 5
	defaultBackoff    = time.Second
	defaultJobTimeout = time.Minute
)

// ErrClosed is returned once the queue has been stopped.
var ErrClosed = errors.New("queue is closed")

// Queue is a buffered channel of jobs drained by a fixed worker pool. Failed
// jobs are re-published after a linear backoff until MaxRetries is spent.
type Queue struct {
	pending chan *jobs.Job
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	store   jobs.JobStore

	workers    int
	backoff    time.Duration
	jobTimeout time.Duration
	observer   func(job *jobs.Job)
	log        zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the base retry delay. Retry n waits n times the base.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) {
		q.backoff = d
	}
}

// WithJobTimeout bounds a single handler call.
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

// WithObserver registers fn to be called with a copy of each job that reaches
// completed, retrying or failed.
func WithObserver(fn func(job *jobs.Job)) Option {
	return func(q *Queue) {
		q.observer = fn
	}
}

// WithLogger sets the queue logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// NewQueue creates a Queue that holds up to bufferSize jobs before Publish
// blocks. store may be nil.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		pending:    make(chan *jobs.Job, bufferSize),
		done:       make(chan struct{}),
		store:      store,
		workers:    defaultWorkers,
		backoff:    defaultBackoff,
		jobTimeout: defaultJobTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish fills in the job's ID, status, creation time and retry budget when
// unset, records it and enqueues a copy.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	q.save(ctx, job)

	select {
	case q.pending <- job.Clone():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
}

// Start launches the workers and returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			q.process(ctx, job, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	q.save(ctx, job)

	err := q.run(ctx, job, handler)

	finished := time.Now()
	job.CompletedAt = &finished

	log := q.log.With().Str("job_id", job.JobID).Str("job_type", string(job.Type)).Logger()

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Dur("took", finished.Sub(started)).Msg("Job completed")
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, retrying")
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Msg("Job failed")
	}

	q.save(ctx, job)
	if q.observer != nil {
		q.observer(job.Clone())
	}

	// Must run after the retrying state is saved.
	if job.Status == jobs.JobStatusRetrying {
		q.retryLater(ctx, job.Clone(), log)
	}
}

func (q *Queue) retryLater(ctx context.Context, job *jobs.Job, log zerolog.Logger) {
	delay := time.Duration(job.RetryCount) * q.backoff
	time.AfterFunc(delay, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.Publish(ctx, job); err != nil {
			log.Warn().Err(err).Msg("Failed to re-enqueue job")
		}
	})
}

// run calls handler under the job timeout, turning a panic into an error.
func (q *Queue) run(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) (err error) {
	ctx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop refuses new jobs and waits for the workers to finish the job they
// are running, or for ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
