package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/pkg/utils"
)

var (
	// ErrQueueFull is returned by Submit when the job buffer is full.
	ErrQueueFull = errors.New("ingest queue is full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("ingest queue is closed")
)

// DefaultJobHistory is how many finished jobs a queue remembers.
const DefaultJobHistory = 1000

// JobStatus is the lifecycle state of a queued ingest.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Ingester is the part of Indexer the queue drives.
type Ingester interface {
	IngestFile(ctx context.Context, path, tenderName string) (*IngestResult, error)
}

// Job is a snapshot of one queued ingest.
type Job struct {
	ID          string        `json:"job_id"`
	Path        string        `json:"path"`
	TenderName  string        `json:"tender"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	Result      *IngestResult `json:"result,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// Ack acknowledges an accepted submission.
type Ack struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// Queue runs ingests on a fixed pool of workers. Job status is kept in memory; only the
// most recent finished jobs are remembered, queued and running jobs are always kept.
type Queue struct {
	ingester Ingester
	jobs     chan string
	logger   *zap.Logger
	history  int

	mu       sync.RWMutex
	byID     map[string]*Job
	finished []string // finished job IDs, oldest first
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue logger.
func WithQueueLogger(l *zap.Logger) QueueOption {
	return func(q *Queue) { q.logger = utils.OrNop(l) }
}

// WithJobHistory bounds how many finished jobs remain visible to Status.
func WithJobHistory(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.history = n
		}
	}
}

// NewQueue starts workers goroutines that drain a buffer of size jobs.
func NewQueue(ingester Ingester, workers, size int, opts ...QueueOption) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ingester: ingester,
		jobs:     make(chan string, size),
		logger:   zap.NewNop(),
		history:  DefaultJobHistory,
		byID:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues an ingest and returns immediately.
func (q *Queue) Submit(path, tenderName string) (Ack, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Ack{}, ErrQueueClosed
	}
	job := &Job{
		ID:          uuid.New().String(),
		Path:        path,
		TenderName:  tenderName,
		Status:      JobQueued,
		SubmittedAt: time.Now().UTC(),
	}
	select {
	case q.jobs <- job.ID:
	default:
		return Ack{}, ErrQueueFull
	}
	q.byID[job.ID] = job
	q.logger.Debug("ingest queued", zap.String("job_id", job.ID), zap.String("path", path), zap.String("tender", tenderName))
	return Ack{JobID: job.ID, Status: JobQueued}, nil
}

// Status returns a copy of the job with the given ID.
func (q *Queue) Status(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.byID[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Pending returns the number of jobs not yet picked up by a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Close stops accepting jobs, lets the workers drain the buffer and waits for them.
// Cancelling ctx aborts in-flight ingests.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for id := range q.jobs {
		q.run(id)
	}
}

func (q *Queue) run(id string) {
	q.mu.Lock()
	job := q.byID[id]
	job.Status = JobRunning
	path, tender := job.Path, job.TenderName
	q.mu.Unlock()

	res, err := q.ingester.IngestFile(q.ctx, path, tender)

	now := time.Now().UTC()
	q.mu.Lock()
	job.FinishedAt = &now
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobSucceeded
		job.Result = res
	}
	q.finished = append(q.finished, id)
	for len(q.finished) > q.history {
		delete(q.byID, q.finished[0])
		q.finished = q.finished[1:]
	}
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("ingest failed", zap.String("job_id", id), zap.String("path", path), zap.Error(err))
	}
}
