// Package scheduler drives the lifecycle sweeps on fixed intervals. Every
// sweep is idempotent, so overlapping runs and operator-triggered ad hoc runs
// are harmless.
package scheduler

import (
	"context"
	"time"

	"github.com/adlanelabs/adlane/internal/config"
	lifecycledomain "github.com/adlanelabs/adlane/internal/lifecycle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Scheduler struct {
	log       *zap.Logger
	cfg       config.SchedulerConfig
	lifecycle lifecycledomain.Service

	cancel context.CancelFunc
	done   chan struct{}
}

type SchedulerParam struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Lifecycle lifecycledomain.Service
}

func NewScheduler(p SchedulerParam) *Scheduler {
	return &Scheduler{
		log:       p.Log.Named("scheduler"),
		cfg:       p.Config.Scheduler,
		lifecycle: p.Lifecycle,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	statusTicker := time.NewTicker(s.cfg.StatusSweepInterval)
	resetTicker := time.NewTicker(s.cfg.DailyResetInterval)
	expiryTicker := time.NewTicker(s.cfg.ExpirySweepInterval)
	defer statusTicker.Stop()
	defer resetTicker.Stop()
	defer expiryTicker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("status_sweep", s.cfg.StatusSweepInterval),
		zap.Duration("daily_reset", s.cfg.DailyResetInterval),
		zap.Duration("expiry_sweep", s.cfg.ExpirySweepInterval),
	)

	// One immediate pass so a restart does not leave stale state waiting a
	// full interval.
	s.sweep(ctx, "status_sweep", s.lifecycle.RunStatusSweep)
	s.sweep(ctx, "daily_reset", s.lifecycle.RunDailyReset)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-statusTicker.C:
			s.sweep(ctx, "status_sweep", s.lifecycle.RunStatusSweep)
		case <-resetTicker.C:
			s.sweep(ctx, "daily_reset", s.lifecycle.RunDailyReset)
		case <-expiryTicker.C:
			s.sweep(ctx, "expiry_sweep", s.lifecycle.RunExpirySweep)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, name string, fn func(context.Context) (lifecycledomain.SweepResult, error)) {
	if ctx.Err() != nil {
		return
	}
	if _, err := fn(ctx); err != nil {
		s.log.Error("sweep failed", zap.String("job", name), zap.Error(err))
	}
}
