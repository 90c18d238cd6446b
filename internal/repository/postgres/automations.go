package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/lib/pq"
)

// AutomationRepo implements automation rule and log persistence against
// PostgreSQL, mirroring AlertRepo's shape since AutomationRule and AlertRule
// share the match/cooldown lifecycle.
type AutomationRepo struct{ db *sql.DB }

// NewAutomationRepo creates a Postgres-backed automation repository.
func NewAutomationRepo(db *sql.DB) *AutomationRepo { return &AutomationRepo{db: db} }

const automationRuleColumns = `id, organization_id, name, ad_account_id, campaign_ids, metric, formula, operator,
	       threshold, action, action_value, channels, email_to, im_to, cooldown_minutes, is_active, last_triggered,
	       trigger_count, created_at, updated_at`

func scanAutomationRule(scan func(...any) error) (domain.AutomationRule, error) {
	var a domain.AutomationRule
	var emailTo, imTo sql.NullString
	err := scan(&a.ID, &a.OrganizationID, &a.Name, &a.AdAccountID, pq.Array(&a.CampaignIDs), &a.Metric, &a.Formula,
		&a.Operator, &a.Threshold, &a.Action, &a.ActionValue, pq.Array(&a.Channels), &emailTo, &imTo,
		&a.CooldownMins, &a.IsActive, &a.LastTriggered, &a.TriggerCount, &a.CreatedAt, &a.UpdatedAt)
	a.EmailTo = emailTo.String
	a.IMTo = imTo.String
	return a, err
}

func (r *AutomationRepo) ActiveRules(ctx context.Context, orgID string) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+automationRuleColumns+`
		FROM automation_rules
		WHERE organization_id = $1 AND is_active = true
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active automation rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AutomationRule
	for rows.Next() {
		a, err := scanAutomationRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan automation rule: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Get returns one AutomationRule by id, scoped to orgID.
func (r *AutomationRepo) Get(ctx context.Context, orgID, id string) (*domain.AutomationRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+automationRuleColumns+`
		FROM automation_rules WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	a, err := scanAutomationRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get automation rule: %w", err)
	}
	return &a, nil
}

// ListAll returns every AutomationRule for an organization regardless of
// is_active.
func (r *AutomationRepo) ListAll(ctx context.Context, orgID string) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+automationRuleColumns+`
		FROM automation_rules WHERE organization_id = $1
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list automation rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AutomationRule
	for rows.Next() {
		a, err := scanAutomationRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan automation rule: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Update replaces an existing AutomationRule's editable fields without
// resetting last_triggered.
func (r *AutomationRepo) Update(ctx context.Context, a *domain.AutomationRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_rules SET name = $1, ad_account_id = $2, campaign_ids = $3, metric = $4, formula = $5,
		       operator = $6, threshold = $7, action = $8, action_value = $9, channels = $10, email_to = $11,
		       im_to = $12, cooldown_minutes = $13, is_active = $14, updated_at = NOW()
		WHERE id = $15 AND organization_id = $16
	`, a.Name, a.AdAccountID, pq.Array(a.CampaignIDs), a.Metric, a.Formula, a.Operator, a.Threshold, a.Action,
		a.ActionValue, pq.Array(a.Channels), a.EmailTo, a.IMTo, a.CooldownMins, a.IsActive, a.ID, a.OrganizationID)
	if err != nil {
		return fmt.Errorf("update automation rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AutomationRepo) Create(ctx context.Context, a *domain.AutomationRule) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_rules
			(id, organization_id, name, ad_account_id, campaign_ids, metric, formula, operator, threshold,
			 action, action_value, channels, email_to, im_to, cooldown_minutes, is_active, trigger_count,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 0, NOW(), NOW())
	`, a.ID, a.OrganizationID, a.Name, a.AdAccountID, pq.Array(a.CampaignIDs), a.Metric, a.Formula, a.Operator,
		a.Threshold, a.Action, a.ActionValue, pq.Array(a.Channels), a.EmailTo, a.IMTo, a.CooldownMins, a.IsActive)
	if err != nil {
		return "", fmt.Errorf("create automation rule: %w", err)
	}
	return a.ID, nil
}

func (r *AutomationRepo) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE automation_rules SET last_triggered = $1, trigger_count = trigger_count + 1 WHERE id = $2
	`, at, ruleID)
	if err != nil {
		return fmt.Errorf("mark automation rule triggered: %w", err)
	}
	return nil
}

func (r *AutomationRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete automation rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLog appends an AutomationLog row, including whether the upstream
// mutation succeeded.
func (r *AutomationRepo) RecordLog(ctx context.Context, l *domain.AutomationLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_log
			(id, automation_rule_id, organization_id, campaign_id, campaign_name, action, metric, threshold,
			 metric_value, message, success, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, l.ID, l.AutomationRuleID, l.OrganizationID, l.CampaignID, l.CampaignName, l.Action, l.Metric, l.Threshold,
		l.MetricValue, l.Message, l.Success, l.Error, l.ExecutedAt)
	if err != nil {
		return fmt.Errorf("record automation log: %w", err)
	}
	return nil
}

func (r *AutomationRepo) CleanupLog(ctx context.Context, retention time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM automation_log WHERE executed_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("cleanup automation log: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
