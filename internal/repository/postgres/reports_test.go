package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetRecipe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReportRepo(db)

	mock.ExpectExec(`INSERT INTO saved_report_recipes`).WillReturnResult(sqlmock.NewResult(0, 1))
	id, err := repo.CreateRecipe(context.Background(), &domain.SavedReportRecipe{
		OrganizationID: "org-1",
		Name:           "Daily spend",
		ScopeType:      "account",
		ScopeID:        "acct-1",
		Metrics:        []domain.Metric{domain.MetricSpend, domain.MetricROAS},
		Format:         domain.FormatCSV,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	mock.ExpectQuery(`SELECT id, organization_id, name, scope_type, scope_id, metrics, template_ids, days, format, created_at, updated_at`).
		WithArgs(id, "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "scope_type", "scope_id", "metrics", "template_ids", "days", "format", "created_at", "updated_at"}).
			AddRow(id, "org-1", "Daily spend", "account", "acct-1", `{spend,roas}`, `{campaign_summary}`, 30, "csv", time.Now(), time.Now()))

	rec, err := repo.GetRecipe(context.Background(), "org-1", id)
	require.NoError(t, err)
	require.Equal(t, "Daily spend", rec.Name)
	require.Len(t, rec.Metrics, 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecipeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReportRepo(db)
	mock.ExpectQuery(`SELECT id, organization_id, name, scope_type, scope_id, metrics, template_ids, days, format, created_at, updated_at`).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetRecipe(context.Background(), "org-1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDueScheduledReports(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReportRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, organization_id, recipe_id, cadence, hour_of_day, day_of_week, day_of_month`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "recipe_id", "cadence", "hour_of_day", "day_of_week", "day_of_month",
			"recipients", "is_active", "next_run_at", "last_run_at", "created_at", "updated_at",
		}).AddRow("sr-1", "org-1", "recipe-1", "daily", 9, 0, 0, `{ops@example.com}`, true, now.Add(-time.Minute), nil, now, now))

	due, err := repo.DueScheduledReports(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, domain.CadenceDaily, due[0].Cadence)

	mock.ExpectExec(`UPDATE scheduled_reports SET last_run_at`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AdvanceSchedule(context.Background(), "sr-1", now, now.Add(24*time.Hour)))

	mock.ExpectExec(`INSERT INTO scheduled_report_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordScheduleLog(context.Background(), &domain.ScheduledReportLog{
		ScheduledReportID: "sr-1",
		OrganizationID:    "org-1",
		Success:           true,
		RunAt:             now,
	}))

	require.NoError(t, mock.ExpectationsWereMet())
}
