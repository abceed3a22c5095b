package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Errors returned by the scheduler.
var (
	// ErrJobExists is returned when registering a job ID that is already active.
	ErrJobExists = errors.New("tasks: job already registered")

	// ErrJobNotFound is returned when cancelling an unknown job ID.
	ErrJobNotFound = errors.New("tasks: job not found")

	// ErrStopped is returned when registering on a stopped scheduler.
	ErrStopped = errors.New("tasks: scheduler stopped")
)

// Func is the work a job performs. The context is cancelled when the
// job is cancelled or the scheduler stops; long-running work should
// honour it.
type Func func(ctx context.Context)

// Logger defines the logging interface for the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// job is one registered task and its cancellation handle.
type job struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs registered jobs on their intervals until cancelled or
// stopped. All methods are safe for concurrent use.
type Scheduler struct {
	logger Logger

	mu      sync.Mutex
	jobs    map[string]*job
	stopped bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Register starts a job that runs fn every interval until cancelled.
// The first run happens after one interval, not immediately; callers
// needing an immediate pass run fn once themselves before registering.
func (s *Scheduler) Register(name string, fn Func, interval time.Duration, jobID string) error {
	if interval <= 0 {
		return fmt.Errorf("tasks: invalid interval %v for job %s", interval, jobID)
	}

	ctx, j, err := s.addJob(name, jobID)
	if err != nil {
		return err
	}

	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runIsolated(name, jobID, fn, ctx)
			}
		}
	}()

	s.logger.Debug("job registered", "job_id", jobID, "name", name, "interval", interval)
	return nil
}

// RegisterOnce starts a job that runs fn once after the delay, then
// removes itself. Used for pulse turn-off timers.
func (s *Scheduler) RegisterOnce(name string, fn Func, delay time.Duration, jobID string) error {
	ctx, j, err := s.addJob(name, jobID)
	if err != nil {
		return err
	}

	go func() {
		defer close(j.done)
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			s.runIsolated(name, jobID, fn, ctx)
		}

		s.mu.Lock()
		if current, ok := s.jobs[jobID]; ok && current == j {
			delete(s.jobs, jobID)
		}
		s.mu.Unlock()
	}()

	s.logger.Debug("one-shot job registered", "job_id", jobID, "name", name, "delay", delay)
	return nil
}

// Cancel stops a job and waits for its goroutine to finish.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}

	j.cancel()
	<-j.done
	s.logger.Debug("job cancelled", "job_id", jobID, "name", j.name)
	return nil
}

// Stop cancels every job and rejects further registrations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
		<-j.done
	}

	s.logger.Info("scheduler stopped", "jobs", len(jobs))
}

// JobCount returns the number of active jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// HasJob reports whether a job ID is active.
func (s *Scheduler) HasJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

// addJob reserves a job slot under the lock.
func (s *Scheduler) addJob(name, jobID string) (context.Context, *job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, nil, ErrStopped
	}
	if _, exists := s.jobs[jobID]; exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.jobs[jobID] = j
	return ctx, j, nil
}

// runIsolated invokes fn with panic recovery so one bad job cannot take
// down the scheduler.
func (s *Scheduler) runIsolated(name, jobID string, fn Func, ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panic recovered",
				"job_id", jobID,
				"name", name,
				"panic", r,
			)
		}
	}()
	fn(ctx)
}
