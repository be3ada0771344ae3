package pipeline

import (
	"context"
	"errors"
	"sync"

	"postforge/internal/infra"
)

// ErrQueueFull is returned by Submit when the submission queue is saturated.
var ErrQueueFull = errors.New("pipeline: queue full")

// Runner schedules jobs onto a bounded worker pool. Submission enqueues; each
// job is dequeued by exactly one worker and run to completion. Stages within
// a job remain strictly sequential because one worker owns the whole run.
type Runner struct {
	orch    *Orchestrator
	logger  infra.Logger
	queue   chan string
	workers int

	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

// NewRunner creates a runner with the given worker count and queue depth.
func NewRunner(orch *Orchestrator, workers, queueDepth int, logger infra.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Runner{
		orch:    orch,
		logger:  logger,
		queue:   make(chan string, queueDepth),
		workers: workers,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	r.logger.Info().Int("workers", r.workers).Msg("pipeline: runner started")
}

// Submit enqueues a job for execution without blocking.
func (r *Runner) Submit(jobID string) error {
	select {
	case r.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-r.queue:
			if err := r.orch.RunJob(ctx, jobID); err != nil {
				r.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: job run ended with error")
			}
		}
	}
}
