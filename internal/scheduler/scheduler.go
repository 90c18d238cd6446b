// Package scheduler is the single-leader periodic driver ("the beat"):
// it fires the rule-check and scheduled-report-dispatch cadences by
// enqueuing the corresponding tick Jobs onto the Worker Pool's Job Store.
// Exactly one Scheduler process may run per deployment — more than one
// would double-fire rule checks and break the cooldown invariant — so every
// tick first contends for a distributed lock and skips the beat entirely
// when it cannot acquire leadership.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/jobstore"
	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/pkg/distlock"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler ticks two cadences (§4.3) whose cron specs come from config:
// rule_check_tick (default every 15 minutes) and scheduled_report_tick
// (default every 1 minute). Both ticks are
// themselves Jobs the Worker Pool executes; the Scheduler's only job is to
// enqueue them on schedule.
type Scheduler struct {
	store          jobstore.Store
	lock           distlock.DistLock
	lockTTL        time.Duration
	organizationID string

	ruleCheckCron string
	reportCron    string

	cron *cron.Cron
}

// New creates a Scheduler. lock is acquired fresh before every tick (not
// held for the cron's lifetime) so a crashed leader's lock expires and a
// standby instance can take over on the next tick.
func New(store jobstore.Store, lock distlock.DistLock, lockTTL time.Duration, organizationID, ruleCheckCron, reportCron string) *Scheduler {
	return &Scheduler{
		store: store, lock: lock, lockTTL: lockTTL, organizationID: organizationID,
		ruleCheckCron: ruleCheckCron, reportCron: reportCron,
		cron: cron.New(),
	}
}

// Start registers both cadences and begins the cron's background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.ruleCheckCron, func() { s.tick(ctx, domain.JobRuleCheckTick, "rule_check") }); err != nil {
		return fmt.Errorf("scheduler: register rule check cadence: %w", err)
	}
	if _, err := s.cron.AddFunc(s.reportCron, func() { s.tick(ctx, domain.JobScheduledReportTick, "scheduled_report") }); err != nil {
		return fmt.Errorf("scheduler: register scheduled report cadence: %w", err)
	}
	s.cron.Start()
	logger.Info("scheduler: started", "rule_check_cron", s.ruleCheckCron, "report_cron", s.reportCron)
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	c := s.cron.Stop()
	<-c.Done()
	logger.Info("scheduler: stopped")
}

// tick contends for leadership then enqueues one instance of kind. Both
// ticks are themselves Worker Pool tasks (they acquire no lock of their
// own per §4.3), so the Scheduler's distributed lock is what keeps a
// multi-instance deployment from double-enqueueing.
func (s *Scheduler) tick(ctx context.Context, kind domain.JobType, label string) {
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	acquired, err := s.lock.Acquire(tctx)
	if err != nil {
		logger.Warn("scheduler: leader lock acquire failed", "tick", label, "error", err.Error())
		return
	}
	metrics.RecordSchedulerTick(label, acquired)
	if !acquired {
		logger.Debug("scheduler: not leader, skipping tick", "tick", label)
		return
	}
	defer func() {
		if err := s.lock.Release(context.Background()); err != nil {
			logger.Warn("scheduler: leader lock release failed", "tick", label, "error", err.Error())
		}
	}()

	job := &domain.Job{
		ID:             uuid.New().String(),
		OrganizationID: s.organizationID,
		Type:           kind,
		Status:         domain.JobPending,
		MaxAttempts:    1,
		RunAfter:       time.Now().UTC(),
	}
	if err := s.store.Enqueue(tctx, job); err != nil {
		logger.Warn("scheduler: enqueue tick failed", "tick", label, "error", err.Error())
		return
	}
	logger.Info("scheduler: tick enqueued", "tick", label, "job_id", job.ID)
}
