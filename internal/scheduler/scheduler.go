// Package scheduler triggers the synchronization jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
)

// Runner executes a synchronization job.
type Runner interface {
	Run(ctx context.Context, job model.Job) (model.SyncReport, error)
}

// Config holds the cron expressions of the two schedules. The registry
// schedule runs the registry job followed by the ledgers job.
type Config struct {
	RegistrySchedule string
	StatusSchedule   string
	RunOnStart       bool
}

// Scheduler owns the cron instance and the context passed to triggered jobs.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *logger.Logger
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(runner Runner, cfg Config, log *logger.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log.With("component", "scheduler")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, runner: runner, logger: log, cfg: cfg}

	if _, err := c.AddFunc(cfg.RegistrySchedule, func() {
		s.run(model.JobRegistry, model.JobLedgers)
	}); err != nil {
		return nil, fmt.Errorf("invalid registry schedule %q: %w", cfg.RegistrySchedule, err)
	}
	if _, err := c.AddFunc(cfg.StatusSchedule, func() {
		s.run(model.JobStatuses)
	}); err != nil {
		return nil, fmt.Errorf("invalid status schedule %q: %w", cfg.StatusSchedule, err)
	}

	return s, nil
}

// Start begins triggering jobs until ctx is done or Stop is called. With
// RunOnStart the whole pipeline runs once in the background right away.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(model.Jobs...)
		}()
	}
}

// Stop stops the schedules, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes jobs in order. A job that fails as a whole stops the chain,
// per-entity failures do not.
func (s *Scheduler) run(jobs ...model.Job) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		report, err := s.runner.Run(ctx, job)
		if err != nil {
			s.logger.Error("scheduled job failed", "job", job, "error", err)
			return
		}
		s.logger.Debug("scheduled job done", "job", job, "run_id", report.RunID, "failed", len(report.Failed))
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
