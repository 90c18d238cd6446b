package domain

import "time"

// JobType enumerates the kinds of work the Worker Pool can execute.
type JobType string

const (
	// JobExport renders a saved report recipe's templates to CSV/zip.
	JobExport JobType = "export"
	// JobAnalyze runs the AI adapter over a recipe's templates and renders a PDF.
	JobAnalyze JobType = "analyze"
	// JobArchive uploads the reports directory to object storage.
	JobArchive JobType = "archive"
	// JobScheduledReport materializes and dispatches one ScheduledReport's recipe.
	JobScheduledReport JobType = "scheduled_report"
	// JobRuleCheckTick evaluates every active AlertRule/AutomationRule.
	JobRuleCheckTick JobType = "rule_check_tick"
	// JobScheduledReportTick enqueues due ScheduledReports.
	JobScheduledReportTick JobType = "scheduled_report_tick"
	// JobReconcileStuck reclaims jobs stuck in running past a staleness window.
	JobReconcileStuck JobType = "reconcile_stuck"
	// JobCleanup purges terminal jobs and expired history/log rows.
	JobCleanup JobType = "cleanup"
)

// JobStatus enumerates the lifecycle states of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// Job is a unit of work dispatched to the Worker Pool. Jobs are idempotent by
// ID: re-dispatching a Job that already succeeded is a no-op at the store layer.
type Job struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Type           JobType         `json:"type" db:"type"`
	Status         JobStatus       `json:"status" db:"status"`
	Progress       int             `json:"progress" db:"progress"`
	Payload        []byte          `json:"payload" db:"payload"`
	Result         []byte          `json:"result,omitempty" db:"result"`
	Error          string          `json:"error,omitempty" db:"error"`
	Attempts       int             `json:"attempts" db:"attempts"`
	MaxAttempts    int             `json:"max_attempts" db:"max_attempts"`
	RunAfter       time.Time       `json:"run_after" db:"run_after"`
	LockedBy       string          `json:"locked_by,omitempty" db:"locked_by"`
	LockedAt       *time.Time      `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// IsTerminal reports whether the Job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed || j.Status == JobDeadLetter
}

// CanRetry reports whether a failed Job is still eligible for re-dispatch.
func (j *Job) CanRetry() bool {
	return j.Status == JobFailed && j.Attempts < j.MaxAttempts
}

// Stale reports whether a running Job has been locked past the given staleness
// window, suggesting its worker crashed mid-task and it should be reclaimed.
func (j *Job) Stale(now time.Time, window time.Duration) bool {
	return j.Status == JobRunning && j.LockedAt != nil && now.Sub(*j.LockedAt) > window
}
