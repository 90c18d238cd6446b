package worker

import (
	"context"
	"time"

	"github.com/ignite/adcontrol/internal/aiadapter"
	"github.com/ignite/adcontrol/internal/archive"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/jobstore"
	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/reportcatalog"
	"github.com/ignite/adcontrol/internal/ruleengine"
	"github.com/ignite/adcontrol/internal/upstream"
)

// AlertRepo is the subset of alert persistence the maintenance tasks need
// beyond what the Rule Engine already depends on.
type AlertRepo interface {
	ruleengine.AlertRepo
	CleanupHistory(ctx context.Context, retention time.Duration) (int, error)
}

// AutomationRepo is the subset of automation persistence the maintenance
// tasks need beyond what the Rule Engine already depends on.
type AutomationRepo interface {
	ruleengine.AutomationRepo
	CleanupLog(ctx context.Context, retention time.Duration) (int, error)
}

// ReportRepo is the subset of report persistence the export, analyze, and
// scheduled-report tasks depend on.
type ReportRepo interface {
	GetRecipe(ctx context.Context, orgID, id string) (*domain.SavedReportRecipe, error)
	RecordFile(ctx context.Context, f *domain.ReportFileRecord) (string, error)
	ExpiredFiles(ctx context.Context, before time.Time) ([]domain.ReportFileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	GetScheduledReport(ctx context.Context, id string) (*domain.ScheduledReport, error)
	DueScheduledReports(ctx context.Context, now time.Time) ([]domain.ScheduledReport, error)
	AdvanceSchedule(ctx context.Context, id string, ranAt, nextRun time.Time) error
	RecordScheduleLog(ctx context.Context, l *domain.ScheduledReportLog) error
}

// Deps bundles every dependency the built-in task set needs, so wiring them
// onto a Pool is one call from cmd/worker.
type Deps struct {
	Store        jobstore.Store
	Upstream     *upstream.Client
	Materializer *reportcatalog.Materializer
	AI           aiadapter.Adapter
	Archive      *archive.Store // nil when object storage is not configured
	Fanout       *notify.Fanout
	Engine       *ruleengine.Engine
	Alerts       AlertRepo
	Automations  AutomationRepo
	Reports      ReportRepo

	OrganizationID   string
	ReportsDir       string
	ReportRetention  time.Duration
	JobCleanupWindow time.Duration
}

// RegisterDefaultTasks wires the full task set (export, analyze, archive,
// scheduled_report, rule_check_tick, scheduled_report_tick, reconcile_stuck,
// cleanup) onto pool.
func RegisterDefaultTasks(pool *Pool, d Deps) {
	t := &tasks{d: d}
	pool.RegisterTask(domain.JobExport, t.export)
	pool.RegisterTask(domain.JobAnalyze, t.analyze)
	pool.RegisterTask(domain.JobArchive, t.archive)
	pool.RegisterTask(domain.JobScheduledReport, t.scheduledReport)
	pool.RegisterTask(domain.JobRuleCheckTick, t.ruleCheckTick)
	pool.RegisterTask(domain.JobScheduledReportTick, t.scheduledReportTick)
	pool.RegisterTask(domain.JobReconcileStuck, t.reconcileStuck)
	pool.RegisterTask(domain.JobCleanup, t.cleanup)

	pool.SetMaintenanceHooks(
		func(ctx context.Context) (int, error) { return t.reclaimStale(ctx, d.JobCleanupWindow) },
		func(ctx context.Context) (map[string]int, error) { return t.runCleanup(ctx, d.ReportRetention) },
	)
}

// tasks holds the shared dependencies every task method closes over.
type tasks struct {
	d Deps
}
