// Package taskrunner executes workflow stage jobs with bounded global
// concurrency and per-document serialization, the realization of the
// Task Runner contract: at-least-once execution, one stage per document
// running at a time, cooperative cancellation.
package taskrunner

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/jordigilh/docflow/pkg/shared/logging"
)

// Job is a single stage execution request. Run is expected to honor
// context cancellation at every suspension point.
type Job struct {
	DocumentID string
	Stage      string
	Attempt    int
	Run        func(ctx context.Context) error
}

// Handle identifies a submitted job and lets the caller wait on or cancel
// it independently of the document-level cancel (used by tests).
type Handle struct {
	DocumentID string
	Stage      string
	Attempt    int
	done       chan struct{}
	err        error
}

func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// documentQueue serializes jobs for one document: at most one Run
// executes at a time; jobs waiting on the same document run one after
// another in no guaranteed order (sync.Mutex is not FIFO). runMu is
// the serialization point — a goroutine holds it for the full
// duration of its job, so a second Submit for the same document
// blocks until the first finishes rather than running concurrently
// against it. stateMu guards cancel/running, which Cancel reads
// independently of whoever currently holds runMu.
type documentQueue struct {
	runMu   sync.Mutex
	stateMu sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// Runner is the in-process worker-group realization of the Task Runner
// contract, using a semaphore to cap global concurrency and a breaker
// per document to stop hammering a failing infrastructure dependency.
type Runner struct {
	log      *logrus.Logger
	sem      *semaphore.Weighted
	mu       sync.Mutex
	queues   map[string]*documentQueue
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRunner(log *logrus.Logger, maxConcurrency int64) *Runner {
	if log == nil {
		log = logrus.New()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Runner{
		log:      log,
		sem:      semaphore.NewWeighted(maxConcurrency),
		queues:   make(map[string]*documentQueue),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *Runner) queueFor(documentID string) *documentQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[documentID]
	if !ok {
		q = &documentQueue{}
		r.queues[documentID] = q
	}
	return q
}

func (r *Runner) breakerFor(documentID string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[documentID]
	if !ok {
		b = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("document-%s", documentID),
			MaxRequests: 1,
			Interval:    0,
		})
		r.breakers[documentID] = b
	}
	return b
}

// Submit schedules job for execution. It blocks until a global
// concurrency slot is free, then spawns a goroutine that waits its
// turn on the document's queue before running — the per-document
// single-writer guarantee spec.md §5 requires holds regardless of how
// many Submits for the same document race each other in.
func (r *Runner) Submit(ctx context.Context, job Job) (*Handle, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire task runner slot: %w", err)
	}

	q := r.queueFor(job.DocumentID)
	handle := &Handle{DocumentID: job.DocumentID, Stage: job.Stage, Attempt: job.Attempt, done: make(chan struct{})}

	go func() {
		defer r.sem.Release(1)
		defer close(handle.done)

		q.runMu.Lock()
		defer q.runMu.Unlock()

		runCtx, cancel := context.WithCancel(ctx)
		q.stateMu.Lock()
		q.cancel = cancel
		q.running = true
		q.stateMu.Unlock()

		defer func() {
			q.stateMu.Lock()
			q.running = false
			q.cancel = nil
			q.stateMu.Unlock()
			cancel()
		}()

		breaker := r.breakerFor(job.DocumentID)
		_, err := breaker.Execute(func() (any, error) {
			return nil, job.Run(runCtx)
		})
		if err != nil {
			r.log.WithFields(logging.StageFields(job.Stage, job.DocumentID, "").ToLogrus()).
				WithField("attempt", job.Attempt).WithError(err).Warn("stage job failed")
		}
		handle.err = err
	}()

	return handle, nil
}

// Cancel signals cooperative cancellation for the document's in-flight
// job, the realization of stop(document_id).
func (r *Runner) Cancel(documentID string) {
	r.mu.Lock()
	q, ok := r.queues[documentID]
	r.mu.Unlock()
	if !ok {
		return
	}
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if q.running && q.cancel != nil {
		q.cancel()
	}
}
