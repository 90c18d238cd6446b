package domain

import "time"

// ReportFormat enumerates the file formats the Report Materializer can emit.
type ReportFormat string

const (
	FormatCSV ReportFormat = "csv"
	FormatZIP ReportFormat = "zip"
	FormatPDF ReportFormat = "pdf"
)

// SavedReportRecipe is a user-defined, reusable report definition: which
// scope, which metrics, which breakdown, saved so a ScheduledReport or an
// on-demand export can reference it by ID instead of re-specifying shape.
type SavedReportRecipe struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	Name           string       `json:"name" db:"name"`
	ScopeType      string       `json:"scope_type" db:"scope_type"`
	ScopeID        string       `json:"scope_id" db:"scope_id"`
	Metrics        []Metric     `json:"metrics" db:"metrics"`
	TemplateIDs    []string     `json:"template_ids" db:"template_ids"`
	Days           int          `json:"days" db:"days"`
	Format         ReportFormat `json:"format" db:"format"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// ReportFileRecord tracks one materialized report file, including where it
// was archived and when it expires from local disk.
type ReportFileRecord struct {
	ID              string       `json:"id" db:"id"`
	RecipeID        string       `json:"recipe_id" db:"recipe_id"`
	OrganizationID  string       `json:"organization_id" db:"organization_id"`
	Format          ReportFormat `json:"format" db:"format"`
	LocalPath       string       `json:"local_path,omitempty" db:"local_path"`
	ArchiveKey      string       `json:"archive_key,omitempty" db:"archive_key"`
	SizeBytes       int64        `json:"size_bytes" db:"size_bytes"`
	RowCount        int          `json:"row_count" db:"row_count"`
	GeneratedAt     time.Time    `json:"generated_at" db:"generated_at"`
	ExpiresAt       time.Time    `json:"expires_at" db:"expires_at"`
}

// ReportCadence enumerates how often a ScheduledReport regenerates.
type ReportCadence string

const (
	CadenceDaily   ReportCadence = "daily"
	CadenceWeekly  ReportCadence = "weekly"
	CadenceMonthly ReportCadence = "monthly"
)

// ScheduledReport binds a SavedReportRecipe to a recurring cadence and a set
// of notification recipients.
type ScheduledReport struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	RecipeID       string        `json:"recipe_id" db:"recipe_id"`
	Cadence        ReportCadence `json:"cadence" db:"cadence"`
	HourOfDay      int           `json:"hour_of_day" db:"hour_of_day"`
	DayOfWeek      int           `json:"day_of_week,omitempty" db:"day_of_week"`   // weekly: 0=Sunday
	DayOfMonth     int           `json:"day_of_month,omitempty" db:"day_of_month"` // monthly
	Recipients     []string      `json:"recipients" db:"recipients"`
	IsActive       bool          `json:"is_active" db:"is_active"`
	NextRunAt      time.Time     `json:"next_run_at" db:"next_run_at"`
	LastRunAt      *time.Time    `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Due reports whether the scheduled report should run as of now.
func (s *ScheduledReport) Due(now time.Time) bool {
	return s.IsActive && !s.NextRunAt.After(now)
}

// ScheduledReportLog is an append-only record of one ScheduledReport
// dispatch attempt.
type ScheduledReportLog struct {
	ID                string    `json:"id" db:"id"`
	ScheduledReportID string    `json:"scheduled_report_id" db:"scheduled_report_id"`
	OrganizationID    string    `json:"organization_id" db:"organization_id"`
	ReportFileID      string    `json:"report_file_id,omitempty" db:"report_file_id"`
	Success           bool      `json:"success" db:"success"`
	Error             string    `json:"error,omitempty" db:"error"`
	RunAt             time.Time `json:"run_at" db:"run_at"`
}

// NextRun computes the next fire time for the given cadence strictly after
// `after`, following the same hour/day-of-week/day-of-month fields the
// ScheduledReport stores.
func NextRun(cadence ReportCadence, hourOfDay, dayOfWeek, dayOfMonth int, after time.Time) time.Time {
	loc := after.Location()
	candidate := time.Date(after.Year(), after.Month(), after.Day(), hourOfDay, 0, 0, 0, loc)

	switch cadence {
	case CadenceDaily:
		if !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case CadenceWeekly:
		for int(candidate.Weekday()) != dayOfWeek || !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case CadenceMonthly:
		candidate = monthlyCandidate(after.Year(), after.Month(), dayOfMonth, hourOfDay, loc)
		if !candidate.After(after) {
			y, m := after.Year(), after.Month()+1
			if m > 12 {
				m = 1
				y++
			}
			candidate = monthlyCandidate(y, m, dayOfMonth, hourOfDay, loc)
		}
	}
	return candidate
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthlyCandidate builds the fire time for a monthly cadence, clamping
// day_of_month to the month's actual last day (e.g. 31 in February becomes
// the 28th/29th) rather than letting it roll into the next month.
func monthlyCandidate(year int, month time.Month, dayOfMonth, hourOfDay int, loc *time.Location) time.Time {
	day := dayOfMonth
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hourOfDay, 0, 0, 0, loc)
}
