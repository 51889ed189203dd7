package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
)

// SweepLockKey is the Redis key guarding a sweep pass across instances.
const SweepLockKey = "tickets:sla-sweep:lock"

// ErrSweepInProgress is returned by RunOnce when another pass holds the lock.
var ErrSweepInProgress = errors.New("sla sweep already in progress")

// BreachFlagger performs one breach detection pass.
type BreachFlagger interface {
	FlagBreaches(ctx context.Context) (int, error)
}

// Locker provides a lock shared between service instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// SweeperConfig controls the breach sweeper.
type SweeperConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	LockTTL  time.Duration
}

// SLASweeper runs breach detection on a fixed period. Passes never overlap:
// within a process a mutex guards RunOnce, and across processes the optional
// Locker does.
type SLASweeper struct {
	flagger BreachFlagger
	locker  Locker
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     SweeperConfig

	pass      sync.Mutex
	mu        sync.Mutex
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

// NewSLASweeper builds a sweeper. locker and metrics may be nil.
func NewSLASweeper(flagger BreachFlagger, locker Locker, metrics *observability.Metrics, logger *zap.Logger, cfg SweeperConfig) *SLASweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.LockTTL < cfg.Timeout {
		cfg.LockTTL = cfg.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLASweeper{flagger: flagger, locker: locker, metrics: metrics, logger: logger, cfg: cfg}
}

// Start schedules the sweep, running the first pass immediately. Calling
// Start on a running sweeper is a no-op.
func (s *SLASweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := s.RunOnce(runCtx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.logger.Error("sla sweep failed", zap.Error(err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("sla", "breach"),
		gocron.WithName("sla-breach-sweeper"),
	)
	if err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return err
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.cancel = cancel
	s.logger.Info("sla sweeper started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop cancels an in-flight pass between tickets and waits for it to return.
func (s *SLASweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	s.cancel()
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	s.cancel = nil
	s.logger.Info("sla sweeper stopped")
	return err
}

// RunOnce performs one bounded pass and returns the number of tickets flagged.
// It returns ErrSweepInProgress instead of waiting when a pass is already running.
func (s *SLASweeper) RunOnce(ctx context.Context) (int, error) {
	if !s.pass.TryLock() {
		s.metrics.RecordSweepSkipped()
		return 0, ErrSweepInProgress
	}
	defer s.pass.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, SweepLockKey, s.cfg.LockTTL)
		if err != nil {
			s.logger.Warn("sweep lock unavailable; running unguarded", zap.Error(err))
		} else if !acquired {
			s.metrics.RecordSweepSkipped()
			s.logger.Debug("sla sweep held by another instance")
			return 0, ErrSweepInProgress
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	flagged, err := s.flagger.FlagBreaches(ctx)
	elapsed := time.Since(start)
	s.metrics.RecordSweep(start.UTC(), elapsed, flagged, err)

	if flagged > 0 {
		s.logger.Info("sla breaches flagged", zap.Int("count", flagged), zap.Duration("duration", elapsed))
	} else {
		s.logger.Debug("no sla breaches", zap.Duration("duration", elapsed))
	}
	return flagged, err
}
