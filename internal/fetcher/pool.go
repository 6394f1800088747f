// Package fetcher provides the bounded worker pool that runs per-item fetch
// tasks (detail lookups, comment walks) concurrently while the page and
// keyword iteration above it stays sequential.
package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/ratelimit"
)

// Job is one unit of fetch work, keyed by the item it targets.
type Job struct {
	ItemID string
	Run    func(ctx context.Context) error
}

// Result reports one finished job. A failed job carries its error; the
// pool never stops on individual failures.
type Result struct {
	ItemID   string
	Err      error
	Duration time.Duration
}

// WorkerPool runs jobs on a fixed number of workers. Submitting stops and
// in-flight jobs wind down when the pool's context is cancelled.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a pool of numWorkers workers. Jobs respect the
// rate limiter before each fetch; pass ratelimit.NewUnlimited() to disable.
func NewWorkerPool(ctx context.Context, numWorkers int, rateLimiter ratelimit.Limiter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewUnlimited()
	}
	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         poolCtx,
		cancel:      cancel,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting fetch worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight jobs to finish, then
// closes the result queue. Safe to call once after all Submits.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit enqueues a job. It fails when the pool is shutting down.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel finished jobs are reported on.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		// Cancelled pools stop dequeuing; the job just taken still runs
		// under the pool context and will observe cancellation itself.
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.runJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) runJob(job Job, workerID int) Result {
	start := time.Now()

	if !wp.rateLimiter.Allow() {
		wp.rateLimiter.Wait()
	}

	err := job.Run(wp.ctx)
	result := Result{
		ItemID:   job.ItemID,
		Err:      err,
		Duration: time.Since(start),
	}

	if err != nil {
		wp.logger.WarnWithFields("fetch job failed", map[string]interface{}{
			"worker_id": workerID,
			"item_id":   job.ItemID,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
	} else {
		wp.logger.DebugWithFields("fetch job done", map[string]interface{}{
			"worker_id": workerID,
			"item_id":   job.ItemID,
			"duration":  result.Duration,
		})
	}

	return result
}

// QueueSize returns the number of queued, unstarted jobs.
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
