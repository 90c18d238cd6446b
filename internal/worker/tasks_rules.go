package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/ruleengine"
)

// ruleCheckTickResult is the JobRuleCheckTick task's result payload.
type ruleCheckTickResult struct {
	AccountsChecked  int `json:"accounts_checked"`
	AccountsTotal    int `json:"accounts_total"`
	SnapshotEntities int `json:"snapshot_entities"`
}

// ruleCheckTick is the Scheduler's every-15-minute beat. Per §4.3 step 1 it
// groups every active AlertRule and AutomationRule by ad_account_id, fetches
// each account's campaign snapshot independently, and evaluates both rule
// sets against it. An account whose snapshot fails to fetch is logged and
// skipped — per §4.3 step 4, its rules simply wait for the next tick while
// every other account's rules still run.
func (t *tasks) ruleCheckTick(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	progress(0)

	alertRules, err := t.d.Alerts.ActiveRules(ctx, job.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("worker: rule_check_tick: list active alert rules: %w", err)
	}
	automationRules, err := t.d.Automations.ActiveRules(ctx, job.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("worker: rule_check_tick: list active automation rules: %w", err)
	}
	accounts := ruleengine.DistinctAccounts(alertRules, automationRules)
	progress(10)

	checkedAccounts := 0
	snapshotEntities := 0
	for i, account := range accounts {
		snapshot, err := buildSnapshot(ctx, t.d.Upstream, account)
		if err != nil {
			logger.Warn("worker: rule_check_tick: snapshot fetch failed, skipping account", "ad_account_id", account, "error", err.Error())
			continue
		}

		if err := t.d.Engine.EvaluateAlerts(ctx, job.OrganizationID, account, snapshot); err != nil {
			logger.Warn("worker: rule_check_tick: evaluate alerts failed", "ad_account_id", account, "error", err.Error())
		}
		if err := t.d.Engine.EvaluateAutomations(ctx, job.OrganizationID, account, snapshot); err != nil {
			logger.Warn("worker: rule_check_tick: evaluate automations failed", "ad_account_id", account, "error", err.Error())
		}

		checkedAccounts++
		snapshotEntities += len(snapshot)
		progress(10 + (i+1)*80/max(len(accounts), 1))
	}
	progress(100)

	return mustMarshal(ruleCheckTickResult{
		AccountsChecked:  checkedAccounts,
		AccountsTotal:    len(accounts),
		SnapshotEntities: snapshotEntities,
	}), nil
}

// scheduledReportTickResult is the JobScheduledReportTick task's result
// payload.
type scheduledReportTickResult struct {
	Enqueued int `json:"enqueued"`
}

// scheduledReportTick is the Scheduler's every-1-minute beat: it selects
// every due, active ScheduledReport and enqueues a JobScheduledReport task
// for it, fire-and-forget. The scheduled_report task itself recomputes
// next_run_at, so a report stays "due" here only until its own task claims
// the slot.
func (t *tasks) scheduledReportTick(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	progress(0)
	due, err := t.d.Reports.DueScheduledReports(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("worker: scheduled_report_tick: list due reports: %w", err)
	}

	enqueued := 0
	for _, s := range due {
		payload := mustMarshal(scheduledReportPayload{ScheduledReportID: s.ID})
		j := &domain.Job{
			ID:             uuid.New().String(),
			OrganizationID: s.OrganizationID,
			Type:           domain.JobScheduledReport,
			Status:         domain.JobPending,
			Payload:        payload,
			MaxAttempts:    3,
			RunAfter:       time.Now().UTC(),
		}
		if err := t.d.Store.Enqueue(ctx, j); err != nil {
			logger.Warn("worker: scheduled_report_tick: enqueue failed", "scheduled_report_id", s.ID, "error", err.Error())
			continue
		}
		enqueued++
	}
	progress(100)

	return mustMarshal(scheduledReportTickResult{Enqueued: enqueued}), nil
}
