package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
)

// reclaimStale resets jobs stuck in running past the configured staleness
// window back to pending, for jobs whose worker crashed mid-task. It backs
// both the Pool's periodic ticker and the on-demand reconcile_stuck task.
func (t *tasks) reclaimStale(ctx context.Context, window time.Duration) (int, error) {
	return t.d.Store.ReclaimStale(ctx, window)
}

// runCleanup purges terminal jobs and expired history/log/report-file rows
// older than their configured retention windows, mirroring the teacher's
// DataCleanupWorker sweep across several tables in one cycle.
func (t *tasks) runCleanup(ctx context.Context, retention time.Duration) (map[string]int, error) {
	summary := make(map[string]int)

	jobsDeleted, err := t.d.Store.Cleanup(ctx, retention)
	if err != nil {
		return nil, fmt.Errorf("worker: cleanup jobs: %w", err)
	}
	summary["jobs_deleted"] = jobsDeleted

	if t.d.Alerts != nil {
		n, err := t.d.Alerts.CleanupHistory(ctx, retention)
		if err != nil {
			return nil, fmt.Errorf("worker: cleanup alert history: %w", err)
		}
		summary["alert_history_deleted"] = n
	}

	if t.d.Automations != nil {
		n, err := t.d.Automations.CleanupLog(ctx, retention)
		if err != nil {
			return nil, fmt.Errorf("worker: cleanup automation log: %w", err)
		}
		summary["automation_log_deleted"] = n
	}

	if t.d.Reports != nil {
		expired, err := t.d.Reports.ExpiredFiles(ctx, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("worker: list expired report files: %w", err)
		}
		for _, f := range expired {
			if f.LocalPath != "" {
				_ = os.Remove(f.LocalPath)
			}
			if err := t.d.Reports.DeleteFile(ctx, f.ID); err != nil {
				continue
			}
			summary["report_files_deleted"]++
		}
	}

	return summary, nil
}

// reconcileStuck is the JobReconcileStuck task, for administrative on-demand
// triggering through the API in addition to the Pool's own periodic sweep.
func (t *tasks) reconcileStuck(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	progress(0)
	n, err := t.reclaimStale(ctx, t.d.JobCleanupWindow)
	if err != nil {
		return nil, err
	}
	progress(100)
	return mustMarshal(map[string]int{"reclaimed": n}), nil
}

// cleanup is the JobCleanup task wrapping runCleanup for on-demand dispatch.
func (t *tasks) cleanup(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error) {
	progress(0)
	summary, err := t.runCleanup(ctx, t.d.ReportRetention)
	if err != nil {
		return nil, err
	}
	progress(100)
	return mustMarshal(summary), nil
}
