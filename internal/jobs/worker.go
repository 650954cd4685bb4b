package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker manages background jobs and scheduled tasks
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	asyncWG       sync.WaitGroup
	queue         chan Job
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	statsMu       sync.RWMutex
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan Job, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
	}

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(job Job) {
	select {
	case w.queue <- job:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously")
		if err := job(w.ctx); err != nil {
			logger.Error("[Worker] Job error", "error", err)
		}
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(name string, job Job) {
	w.asyncWG.Add(1)
	go func() {
		defer w.asyncWG.Done()

		// Acquire semaphore to limit concurrency
		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.trackJobStart()
		defer w.trackJobEnd()

		// Recover from panics
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[Worker] Async job panic", "job", name, "panic", r)
				w.trackJobFailure()
			}
		}()

		if err := job(w.ctx); err != nil {
			logger.Error("[Worker] Async job error", "job", name, "error", err)
			w.trackJobFailure()
		}
	}()
}

// Drain blocks until every job started with EnqueueAsync has returned
func (w *Worker) Drain() {
	w.asyncWG.Wait()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.trackJobStart()
			start := time.Now()
			if err := job(w.ctx); err != nil {
				logger.Error("[Worker] Job error", "worker", workerID, "error", err)
				w.trackJobFailure()
			} else {
				logger.Debug("[Worker] Job completed", "worker", workerID, "elapsed", time.Since(start))
			}
			w.trackJobEnd()
		}
	}
}

// ScheduleEvery runs a job at fixed intervals. The first run happens after the interval (not at startup).
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, false, job)
}

// ScheduleEveryImmediate runs a job once at startup, then at fixed intervals. Use this when the process
// may restart often so jobs run soon after start instead of waiting for the first interval.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, true, job)
}

func (w *Worker) schedule(name string, interval time.Duration, immediate bool, job Job) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if immediate {
			w.runScheduledJob(name, job)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

func (w *Worker) runScheduledJob(name string, job Job) {
	w.trackJobStart()
	defer w.trackJobEnd()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Scheduler] Job panic", "job", name, "panic", r)
			w.trackJobFailure()
		}
	}()

	start := time.Now()
	if err := job(w.ctx); err != nil {
		logger.Error("[Scheduler] Job error", "job", name, "error", err)
		w.trackJobFailure()
		return
	}
	logger.Info("[Scheduler] Job completed", "job", name, "elapsed", time.Since(start))
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	w.cancel()
	close(w.queue)
	w.wg.Wait()
	w.asyncWG.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

// trackJobEnd always runs, so CompletedJobs counts finished jobs; FailedJobs is the failing subset.
func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FailedJobs++
}
