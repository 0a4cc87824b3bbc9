package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietScheduler(tick time.Duration) *Scheduler {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Tick: tick})
}

func TestEvery(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Minute), Every(time.Minute).Next(base))
	assert.Equal(t, "@every 1m0s", Every(time.Minute).String())
}

func TestRegister_Errors(t *testing.T) {
	s := quietScheduler(time.Second)
	job := JobFunc{JobName: "purge", Fn: func(context.Context) error { return nil }}

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, Every(time.Second)))
	assert.ErrorIs(t, s.Register(job, Every(time.Second)), ErrJobAlreadyExists)
}

func TestRunNow(t *testing.T) {
	s := quietScheduler(time.Second)
	boom := errors.New("boom")
	calls := 0
	require.NoError(t, s.Register(JobFunc{JobName: "flaky", Fn: func(context.Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = s.RunNow(context.Background(), "flaky")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(2), infos[0].RunCount)
	assert.Equal(t, int64(1), infos[0].FailCount)
	require.NotNil(t, infos[0].LastResult)
	assert.False(t, infos[0].LastResult.Success)
}

func TestStartStop_RunsDueJobs(t *testing.T) {
	s := quietScheduler(5 * time.Millisecond)
	var runs atomic.Int32
	require.NoError(t, s.Register(JobFunc{JobName: "tick", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestRunDue_SkipsOverlappingRun(t *testing.T) {
	s := quietScheduler(time.Hour)
	var clock atomic.Int64
	clock.Store(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixNano())
	s.now = func() time.Time { return time.Unix(0, clock.Load()) }

	release := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.Register(JobFunc{JobName: "slow", Fn: func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}}, Every(time.Minute)))

	clock.Add(int64(2 * time.Minute))
	s.runDue(context.Background())
	clock.Add(int64(2 * time.Minute))
	s.runDue(context.Background())

	close(release)
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())
}
