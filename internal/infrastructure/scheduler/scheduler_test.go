package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(10*time.Minute), s.Next(at))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(18, 0)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			"before the slot runs same day",
			time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			"exactly at the slot rolls to tomorrow",
			time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			"after the slot rolls to tomorrow",
			time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Next(tt.at))
		})
	}
}

func TestDailySchedule_ClampsOutOfRange(t *testing.T) {
	s := NewDailySchedule(99, -5)
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, 0, s.Minute)
}

func TestCronSchedule_Next(t *testing.T) {
	tests := []struct {
		expr string
		at   time.Time
		want time.Time
	}{
		{
			"*/15 * * * *",
			time.Date(2026, 3, 1, 10, 7, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC),
		},
		{
			"0 18 * * *",
			time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			// Sunday sweep. 2026-03-01 is a Sunday.
			"0 0 * * 0",
			time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := NewCronSchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(tt.at))
		})
	}
}

func TestCronSchedule_RejectsMalformedExpressions(t *testing.T) {
	malformed := []string{
		"", "* * * *", "61 * * * *", "* 25 * * *", "x * * * *",
		"x-y/2 * * * *", "1-x/2 * * * *", "x/5 * * * *", "*/x * * * *",
	}
	for _, expr := range malformed {
		_, err := NewCronSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestScheduler_RegisterRejectsDuplicates(t *testing.T) {
	s := NewScheduler(nil)

	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	err := s.Register(job, NewIntervalSchedule(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(nil)

	job := &countingJob{name: "rebuild"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "rebuild")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowReportsJobError(t *testing.T) {
	s := NewScheduler(nil)

	job := &countingJob{name: "flaky", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "flaky")
	assert.Error(t, err)
	assert.False(t, result.Success)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].FailCount)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(&countingJob{name: "idle"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := NewScheduler(nil)

	job := &countingJob{name: "fast"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(50*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for job.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
