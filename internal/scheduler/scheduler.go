// Package scheduler runs the hourly session reconciliation job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	obsmetrics "github.com/smallbiznis/waitline/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/waitline/internal/queuesession/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   queuedomain.Repository
	Clock  clock.Clock
	Policy *config.LifecyclePolicyHolder

	Locker *Locker `optional:"true"`
	Config Config  `optional:"true"`
}

type Scheduler struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    Config
	repo   queuedomain.Repository
	clock  clock.Clock
	policy *config.LifecyclePolicyHolder
	locker *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Clock == nil || p.Policy == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:     p.DB,
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		repo:   p.Repo,
		clock:  p.Clock,
		policy: p.Policy,
		locker: p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	recMetrics := obsmetrics.Reconciler()
	recMetrics.IncJobRun(name)

	err := fn(ctx)
	recMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		recMetrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	recMetrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs one reconciliation pass. With a locker configured,
// only the node holding the leader lock sweeps; everyone else skips.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		token, owner, err := s.locker.TryLock(parent, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("leader lock unavailable, running unguarded", zap.Error(err))
		} else if !owner {
			obsmetrics.Reconciler().IncLockSkipped()
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(parent, s.cfg.LockKey, token); err != nil {
					s.log.Warn("failed to release leader lock", zap.Error(err))
				}
			}()
		}
	}

	return s.runJob(parent, "reconcile_sessions", s.cfg.JobTimeout, func(ctx context.Context) error {
		_, err := s.ReconcileSessions(ctx)
		return err
	})
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	recMetrics := obsmetrics.Reconciler()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("reconciliation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runLag := time.Since(nextRun)
		if runLag > 0 {
			recMetrics.ObserveRunLoopLag(runLag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}
