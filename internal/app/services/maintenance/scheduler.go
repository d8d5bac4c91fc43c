// Package maintenance runs the periodic expiry sweeps on cron schedules.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/metrics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/vouchers"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/system"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

const (
	JobVoucherExpiry  = "voucher_expiry"
	JobExchangeExpiry = "exchange_expiry"
	JobMissionSweep   = "mission_sweep"
)

// ErrUnknownJob is returned by Run for an unregistered job name.
var ErrUnknownJob = errors.New("unknown maintenance job")

// Job is one sweep. Run reports how many records it changed.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner for maintenance jobs.
type Scheduler struct {
	jobs []Job
	log  *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

var _ system.Service = (*Scheduler)(nil)

// New wires the standard sweeps. A job with an empty spec can still be run
// on demand but is never scheduled.
func New(cfg config.SchedulerConfig, pendingTTL time.Duration, vs *vouchers.Service, xs *exchange.Service, ms *missions.Service, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("maintenance")
	}
	if pendingTTL <= 0 {
		pendingTTL = 24 * time.Hour
	}
	return NewWithJobs(log,
		Job{Name: JobVoucherExpiry, Spec: cfg.VoucherExpirySpec, Run: func(ctx context.Context) (int, error) {
			return vs.ExpireClaimed(ctx, time.Now())
		}},
		Job{Name: JobExchangeExpiry, Spec: cfg.ExchangeExpirySpec, Run: func(ctx context.Context) (int, error) {
			return xs.ExpirePending(ctx, time.Now().Add(-pendingTTL))
		}},
		Job{Name: JobMissionSweep, Spec: cfg.MissionSweepSpec, Run: func(ctx context.Context) (int, error) {
			return ms.DeactivateEnded(ctx)
		}},
	)
}

// NewWithJobs builds a scheduler around arbitrary jobs.
func NewWithJobs(log *logger.Logger, jobs ...Job) *Scheduler {
	if log == nil {
		log = logger.NewDefault("maintenance")
	}
	return &Scheduler{jobs: jobs, log: log}
}

func (s *Scheduler) Name() string { return "maintenance" }

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(s.log.WithField("scheduler", "cron"))),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	scheduled := 0
	for _, job := range s.jobs {
		if job.Spec == "" {
			continue
		}
		job := job
		if _, err := c.AddFunc(job.Spec, func() { _, _ = s.run(runCtx, job) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
		}
		scheduled++
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.Infof("maintenance scheduler started with %d jobs", scheduled)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("maintenance scheduler stopped")
	return nil
}

// Run executes the named job immediately.
func (s *Scheduler) Run(ctx context.Context, name string) (int, error) {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(ctx, job)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) run(ctx context.Context, job Job) (int, error) {
	start := time.Now()
	affected, err := job.Run(ctx)
	metrics.RecordMaintenanceRun(job.Name, affected, time.Since(start), err == nil)
	if err != nil {
		s.log.WithError(err).Warnf("maintenance job %s failed", job.Name)
		return affected, err
	}
	if affected > 0 {
		s.log.Infof("maintenance job %s updated %d records", job.Name, affected)
	}
	return affected, nil
}
