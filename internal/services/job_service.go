package services

import (
	"context"
	"sync"
	"time"

	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// SweepResult summarises one run of the overdue instalment sweep
type SweepResult struct {
	RanAt     time.Time `json:"ran_at"`
	Reminders int       `json:"reminders"`
	Error     string    `json:"error,omitempty"`
}

// JobService runs the scheduled back-office jobs and reports worker health
type JobService struct {
	worker    *jobs.Worker
	schedules *PaymentScheduleService

	mu        sync.RWMutex
	lastSweep *SweepResult
}

func NewJobService(worker *jobs.Worker, schedules *PaymentScheduleService) *JobService {
	return &JobService{
		worker:    worker,
		schedules: schedules,
	}
}

// RunOverdueSweep publishes a reminder for every overdue instalment
func (s *JobService) RunOverdueSweep(ctx context.Context) error {
	count, err := s.schedules.SendOverdueReminders(ctx)

	result := &SweepResult{RanAt: s.schedules.now().UTC(), Reminders: count}
	if err != nil {
		result.Error = err.Error()
	}
	s.mu.Lock()
	s.lastSweep = result
	s.mu.Unlock()

	if err != nil {
		return err
	}
	logger.Info("Overdue sweep finished", "reminders", count)
	return nil
}

// QueueOverdueSweep hands the sweep to the worker pool and returns at once.
// The outcome shows up as last_overdue_sweep in GetStatus.
func (s *JobService) QueueOverdueSweep() {
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.RunOverdueSweep(ctx)
	})
}

// LastSweep returns the outcome of the most recent sweep, or nil before the first one
func (s *JobService) LastSweep() *SweepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSweep
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()

	s.mu.RLock()
	lastSweep := s.lastSweep
	s.mu.RUnlock()

	return map[string]interface{}{
		"active_jobs":        stats.ActiveJobs,
		"completed_jobs":     stats.CompletedJobs,
		"failed_jobs":        stats.FailedJobs,
		"queue_length":       stats.QueueLength,
		"max_concurrent":     stats.MaxConcurrent,
		"last_overdue_sweep": lastSweep,
	}
}
