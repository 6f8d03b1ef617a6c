package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer triggers a sync of every artifact flagged for it.
// *catalog.Catalog satisfies it.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// Scheduler runs artifact sync on a cron schedule. A run is skipped
// while the previous one is still going.
type Scheduler struct {
	spec    string
	timeout time.Duration
	syncer  Syncer
	logger  *zap.Logger
	cron    *cron.Cron

	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc
	lastErr error
	lastRun time.Time
}

func NewScheduler(spec string, timeout time.Duration, syncer Syncer, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.With(zap.String("component", "scheduler"))
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	s := &Scheduler{
		spec:    spec,
		timeout: timeout,
		syncer:  syncer,
		logger:  logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}
	if spec == "" {
		return s, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if s.spec == "" {
		s.logger.Info("artifact sync schedule disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(runCtx); err != nil {
			s.logger.Error("scheduled sync failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return NewSyncError("schedule", "", "failed to add sync job", err)
	}

	s.cancel = cancel
	s.started = true
	s.cron.Start()
	s.logger.Info("artifact sync scheduled", zap.String("schedule", s.spec))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Debug("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown timed out: %w", ctx.Err())
	}
}

// RunOnce performs one sync bounded by the scheduler's timeout.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.syncer.SyncAll(ctx)
	if err != nil {
		err = NewSyncError("sync", AllArtifacts, "failed to sync artifacts", err)
	}

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Debug("sync finished",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil))
	return err
}

// IsHealthy reports whether the last run, if any, succeeded.
func (s *Scheduler) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr == nil
}

func (s *Scheduler) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}
