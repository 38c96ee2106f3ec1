// Package scheduler runs the periodic background jobs of the gamification
// worker: leaderboard cache rebuilds and streak-at-risk reminder sweeps.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is one schedulable unit of background work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobResult records the outcome of one job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

var (
	ErrNilJob                  = fmt.Errorf("job cannot be nil")
	ErrNilSchedule             = fmt.Errorf("schedule cannot be nil")
	ErrJobAlreadyExists        = fmt.Errorf("job already exists")
	ErrJobNotFound             = fmt.Errorf("job not found")
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")
	ErrSchedulerNotRunning     = fmt.Errorf("scheduler is not running")
)

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// Scheduler executes registered jobs on their schedules. The loop sleeps
// until the soonest due time rather than polling. All schedule math is UTC,
// matching the calendar-day semantics of streaks.
type Scheduler struct {
	mu sync.Mutex

	logger *slog.Logger

	entries  map[string]*entry
	lastRuns map[string]*JobResult

	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wake      chan struct{}
	wg        sync.WaitGroup
}

type entry struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	lastRun  time.Time
	runs     int64
	failures int64
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:   logger,
		entries:  make(map[string]*entry),
		lastRuns: make(map[string]*JobResult),
		wake:     make(chan struct{}, 1),
	}
}

// Register adds a job. Registering while running is allowed; the loop wakes
// up to take the new job into account.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	name := job.Name()
	if _, exists := s.entries[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().UTC()),
	}
	s.entries[name] = e
	s.mu.Unlock()

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)

	s.poke()
	return nil
}

// Start launches the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobCount)

	s.wg.Add(1)
	go s.loop(loopCtx)

	return nil
}

// Stop halts the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow executes a job immediately, off-schedule. The regular nextRun is
// left untouched.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.Lock()
	e, exists := s.entries[jobName]
	s.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, e)
	return result, result.Error
}

// ─────────────────────────────────────────────────────────────────────────────
// Loop
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		due, wait := s.takeDue()

		for _, e := range due {
			s.wg.Add(1)
			go func(e *entry) {
				defer s.wg.Done()
				s.execute(ctx, e)
			}(e)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// takeDue collects due jobs, advances their nextRun, and returns how long the
// loop may sleep before anything else is due.
func (s *Scheduler) takeDue() ([]*entry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*entry
	for _, e := range s.entries {
		if !e.nextRun.IsZero() && !e.nextRun.After(now) {
			due = append(due, e)
			// Advance before running so a slow job cannot pile up runs.
			e.nextRun = e.schedule.Next(now)
		}
	}

	wait := time.Hour
	for _, e := range s.entries {
		if e.nextRun.IsZero() {
			continue
		}
		if d := e.nextRun.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Second {
		wait = time.Second
	}

	return due, wait
}

// poke wakes the loop after a registration.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) *JobResult {
	name := e.job.Name()
	startedAt := time.Now()

	s.logger.Info("job started", "job", name)

	err := e.job.Run(ctx)
	completedAt := time.Now()

	result := &JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}

	s.mu.Lock()
	e.lastRun = startedAt
	e.runs++
	if err != nil {
		e.failures++
	}
	s.lastRuns[name] = result
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}

	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// JobInfo describes a registered job for status reporting.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns a snapshot of every registered job.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runs,
			FailCount:   e.failures,
			LastResult:  s.lastRuns[name],
		})
	}
	return infos
}
