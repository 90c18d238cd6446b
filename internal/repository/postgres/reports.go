package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ReportRepo implements SavedReportRecipe, ReportFileRecord, ScheduledReport,
// and ScheduledReportLog persistence against PostgreSQL.
type ReportRepo struct {
	db  *sql.DB
	sdb *sqlx.DB
}

// NewReportRepo creates a Postgres-backed report repository. sqlx wraps the
// same *sql.DB so struct-scanning list queries avoid hand-written Scan calls.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db, sdb: sqlx.NewDb(db, "postgres")}
}

func (r *ReportRepo) CreateRecipe(ctx context.Context, rec *domain.SavedReportRecipe) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Days == 0 {
		rec.Days = 30
	}
	metrics := make([]string, len(rec.Metrics))
	for i, m := range rec.Metrics {
		metrics[i] = string(m)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_report_recipes (id, organization_id, name, scope_type, scope_id, metrics, template_ids, days, format, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, rec.ID, rec.OrganizationID, rec.Name, rec.ScopeType, rec.ScopeID, pq.Array(metrics), pq.Array(rec.TemplateIDs), rec.Days, rec.Format)
	if err != nil {
		return "", fmt.Errorf("create report recipe: %w", err)
	}
	return rec.ID, nil
}

// ListRecipes returns all SavedReportRecipes for an organization using sqlx
// struct scanning, the read-heavy list-endpoint path.
func (r *ReportRepo) ListRecipes(ctx context.Context, orgID string) ([]domain.SavedReportRecipe, error) {
	var rows []struct {
		ID             string         `db:"id"`
		OrganizationID string         `db:"organization_id"`
		Name           string         `db:"name"`
		ScopeType      string         `db:"scope_type"`
		ScopeID        string         `db:"scope_id"`
		Metrics        pq.StringArray `db:"metrics"`
		TemplateIDs    pq.StringArray `db:"template_ids"`
		Days           int            `db:"days"`
		Format         string         `db:"format"`
		CreatedAt      time.Time      `db:"created_at"`
		UpdatedAt      time.Time      `db:"updated_at"`
	}
	if err := r.sdb.SelectContext(ctx, &rows, `
		SELECT id, organization_id, name, scope_type, scope_id, metrics, template_ids, days, format, created_at, updated_at
		FROM saved_report_recipes WHERE organization_id = $1 ORDER BY created_at DESC
	`, orgID); err != nil {
		return nil, fmt.Errorf("list report recipes: %w", err)
	}

	out := make([]domain.SavedReportRecipe, 0, len(rows))
	for _, row := range rows {
		metrics := make([]domain.Metric, len(row.Metrics))
		for i, m := range row.Metrics {
			metrics[i] = domain.Metric(m)
		}
		out = append(out, domain.SavedReportRecipe{
			ID: row.ID, OrganizationID: row.OrganizationID, Name: row.Name,
			ScopeType: row.ScopeType, ScopeID: row.ScopeID, Metrics: metrics,
			TemplateIDs: row.TemplateIDs, Days: row.Days,
			Format: domain.ReportFormat(row.Format), CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *ReportRepo) GetRecipe(ctx context.Context, orgID, id string) (*domain.SavedReportRecipe, error) {
	var rec domain.SavedReportRecipe
	var metrics, templateIDs pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, scope_type, scope_id, metrics, template_ids, days, format, created_at, updated_at
		FROM saved_report_recipes WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(&rec.ID, &rec.OrganizationID, &rec.Name, &rec.ScopeType, &rec.ScopeID, &metrics, &templateIDs, &rec.Days, &rec.Format, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report recipe: %w", err)
	}
	for _, m := range metrics {
		rec.Metrics = append(rec.Metrics, domain.Metric(m))
	}
	rec.TemplateIDs = templateIDs
	return &rec, nil
}

// DeleteRecipe removes a recipe and cascades to its file records, so no
// ReportFileRecord is ever left referencing a deleted recipe.
func (r *ReportRepo) DeleteRecipe(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete report recipe: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_file_records WHERE recipe_id = $1`, id); err != nil {
		return fmt.Errorf("delete report recipe: cascade files: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM saved_report_recipes WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete report recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *ReportRepo) RecordFile(ctx context.Context, f *domain.ReportFileRecord) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO report_file_records
			(id, recipe_id, organization_id, format, local_path, archive_key, size_bytes, row_count, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, f.ID, f.RecipeID, f.OrganizationID, f.Format, f.LocalPath, f.ArchiveKey, f.SizeBytes, f.RowCount, f.GeneratedAt, f.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("record report file: %w", err)
	}
	return f.ID, nil
}

func (r *ReportRepo) ExpiredFiles(ctx context.Context, before time.Time) ([]domain.ReportFileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recipe_id, organization_id, format, COALESCE(local_path, ''), COALESCE(archive_key, ''), size_bytes, row_count, generated_at, expires_at
		FROM report_file_records WHERE expires_at < $1
	`, before)
	if err != nil {
		return nil, fmt.Errorf("list expired report files: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportFileRecord
	for rows.Next() {
		var f domain.ReportFileRecord
		if err := rows.Scan(&f.ID, &f.RecipeID, &f.OrganizationID, &f.Format, &f.LocalPath, &f.ArchiveKey, &f.SizeBytes, &f.RowCount, &f.GeneratedAt, &f.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan report file: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *ReportRepo) DeleteFile(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM report_file_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report file: %w", err)
	}
	return nil
}

// DueScheduledReports returns active ScheduledReports whose next_run_at has
// passed, the set the Scheduler's report-dispatch cadence processes.
func (r *ReportRepo) DueScheduledReports(ctx context.Context, now time.Time) ([]domain.ScheduledReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, recipe_id, cadence, hour_of_day, day_of_week, day_of_month,
		       recipients, is_active, next_run_at, last_run_at, created_at, updated_at
		FROM scheduled_reports
		WHERE is_active = true AND next_run_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled reports: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledReport
	for rows.Next() {
		var s domain.ScheduledReport
		var recipients pq.StringArray
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.RecipeID, &s.Cadence, &s.HourOfDay, &s.DayOfWeek,
			&s.DayOfMonth, &recipients, &s.IsActive, &s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled report: %w", err)
		}
		s.Recipients = recipients
		out = append(out, s)
	}
	return out, nil
}

// GetScheduledReport returns one ScheduledReport by id, the lookup the
// scheduled_report task performs to recompute next_run_at after dispatch.
func (r *ReportRepo) GetScheduledReport(ctx context.Context, id string) (*domain.ScheduledReport, error) {
	var s domain.ScheduledReport
	var recipients pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, recipe_id, cadence, hour_of_day, day_of_week, day_of_month,
		       recipients, is_active, next_run_at, last_run_at, created_at, updated_at
		FROM scheduled_reports WHERE id = $1
	`, id).Scan(&s.ID, &s.OrganizationID, &s.RecipeID, &s.Cadence, &s.HourOfDay, &s.DayOfWeek,
		&s.DayOfMonth, &recipients, &s.IsActive, &s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled report: %w", err)
	}
	s.Recipients = recipients
	return &s, nil
}

// AdvanceSchedule updates a ScheduledReport's last_run_at and next_run_at
// when a dispatch starts, before its outcome is known — a failed dispatch
// still consumes its slot rather than retrying every scheduler tick.
func (r *ReportRepo) AdvanceSchedule(ctx context.Context, id string, ranAt, nextRun time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_reports SET last_run_at = $1, next_run_at = $2, updated_at = NOW() WHERE id = $3
	`, ranAt, nextRun, id)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	return nil
}

func (r *ReportRepo) RecordScheduleLog(ctx context.Context, l *domain.ScheduledReportLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_report_log (id, scheduled_report_id, organization_id, report_file_id, success, error, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.ScheduledReportID, l.OrganizationID, l.ReportFileID, l.Success, l.Error, l.RunAt)
	if err != nil {
		return fmt.Errorf("record scheduled report log: %w", err)
	}
	return nil
}

// CreateScheduledReport inserts a new ScheduledReport with next_run_at
// already computed, the API CRUD write path.
func (r *ReportRepo) CreateScheduledReport(ctx context.Context, s *domain.ScheduledReport) (string, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_reports
			(id, organization_id, recipe_id, cadence, hour_of_day, day_of_week, day_of_month,
			 recipients, is_active, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, s.ID, s.OrganizationID, s.RecipeID, s.Cadence, s.HourOfDay, s.DayOfWeek, s.DayOfMonth,
		pq.Array(s.Recipients), s.IsActive, s.NextRunAt)
	if err != nil {
		return "", fmt.Errorf("create scheduled report: %w", err)
	}
	return s.ID, nil
}

// ListScheduledReports returns all ScheduledReports for an organization.
func (r *ReportRepo) ListScheduledReports(ctx context.Context, orgID string) ([]domain.ScheduledReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, recipe_id, cadence, hour_of_day, day_of_week, day_of_month,
		       recipients, is_active, next_run_at, last_run_at, created_at, updated_at
		FROM scheduled_reports WHERE organization_id = $1 ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled reports: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledReport
	for rows.Next() {
		var s domain.ScheduledReport
		var recipients pq.StringArray
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.RecipeID, &s.Cadence, &s.HourOfDay, &s.DayOfWeek,
			&s.DayOfMonth, &recipients, &s.IsActive, &s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled report: %w", err)
		}
		s.Recipients = recipients
		out = append(out, s)
	}
	return out, nil
}

// UpdateScheduledReport persists edited fields and the freshly recomputed
// next_run_at; is_active toggles go through the same path, last-write-wins.
func (r *ReportRepo) UpdateScheduledReport(ctx context.Context, s *domain.ScheduledReport) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_reports SET
			recipe_id = $1, cadence = $2, hour_of_day = $3, day_of_week = $4, day_of_month = $5,
			recipients = $6, is_active = $7, next_run_at = $8, updated_at = NOW()
		WHERE id = $9 AND organization_id = $10
	`, s.RecipeID, s.Cadence, s.HourOfDay, s.DayOfWeek, s.DayOfMonth, pq.Array(s.Recipients),
		s.IsActive, s.NextRunAt, s.ID, s.OrganizationID)
	if err != nil {
		return fmt.Errorf("update scheduled report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteScheduledReport removes a ScheduledReport by id.
func (r *ReportRepo) DeleteScheduledReport(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_reports WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete scheduled report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
