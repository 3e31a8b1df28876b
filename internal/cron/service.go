package cron

import (
	"context"
	"time"

	"github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per tick while holding the
// distributed lock, so only one worker replica does the work.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New(errors.CodeDependency, "logger required")
	}
	if params.Lock == nil {
		return nil, errors.New(errors.CodeDependency, "lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run ticks until ctx is canceled. The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	})
	s.logg.Info(ctx, "cron.started")
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	ran, err := s.RunOnce(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron.cycle.failed", err)
		return
	}
	if !ran {
		s.logg.Debug(ctx, "cron.cycle.skipped")
	}
}

// RunOnce executes one cycle and reports whether this instance held the lock.
// Job failures are logged and counted; they never abort the cycle.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, errors.Wrap(errors.CodeDependency, err, "acquire cron lock")
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "cron.lock.release_failed", relErr)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return true, nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())

	s.metrics.Record(job.Name(), elapsed, err)
	if err != nil {
		s.logg.Error(jobCtx, "cron.job.failed", err)
		return
	}
	s.logg.Debug(jobCtx, "cron.job.completed")
}
