package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is the part of Pipeline the scheduler drives.
type Runner interface {
	TryRunOnce(ctx context.Context) (*Report, error)
}

// Scheduler re-runs the pipeline every interval. The first run starts
// immediately and a tick is skipped while a run is still active.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. Intervals below one second are rounded up
// to one second.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, then waits for an in-flight run to return.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id := c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.tick(ctx) }))

	s.logger.Info("scheduler started", "interval", s.interval)
	c.Start()

	// The first run goes through the same chain so an early tick is skipped.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.TryRunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("skipping scheduled run, another run is in progress")
	case err != nil && ctx.Err() == nil:
		// Already logged with the run report; the next tick tries again.
		s.logger.Debug("scheduled run failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger. Cron's chatty info lines go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
