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

// AlertRepo implements alert rule and history persistence against PostgreSQL.
type AlertRepo struct{ db *sql.DB }

// NewAlertRepo creates a Postgres-backed alert repository.
func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

const alertRuleColumns = `id, organization_id, name, ad_account_id, metric, formula, operator, threshold,
	       channels, email_to, im_to, cooldown_minutes, is_active, last_triggered, trigger_count, created_at, updated_at`

func scanAlertRule(scan func(...any) error) (domain.AlertRule, error) {
	var a domain.AlertRule
	var emailTo, imTo sql.NullString
	err := scan(&a.ID, &a.OrganizationID, &a.Name, &a.AdAccountID, &a.Metric, &a.Formula, &a.Operator, &a.Threshold,
		pq.Array(&a.Channels), &emailTo, &imTo, &a.CooldownMins, &a.IsActive, &a.LastTriggered, &a.TriggerCount, &a.CreatedAt, &a.UpdatedAt)
	a.EmailTo = emailTo.String
	a.IMTo = imTo.String
	return a, err
}

// ActiveRules returns every active AlertRule for an organization, the set
// the Rule Engine evaluates on each scheduler tick.
func (r *AlertRepo) ActiveRules(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+alertRuleColumns+`
		FROM alert_rules
		WHERE organization_id = $1 AND is_active = true
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertRule
	for rows.Next() {
		a, err := scanAlertRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Get returns one AlertRule by id, scoped to orgID.
func (r *AlertRepo) Get(ctx context.Context, orgID, id string) (*domain.AlertRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+alertRuleColumns+`
		FROM alert_rules WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	a, err := scanAlertRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert rule: %w", err)
	}
	return &a, nil
}

// ListAll returns every AlertRule for an organization regardless of
// is_active, the shape the management API lists.
func (r *AlertRepo) ListAll(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+alertRuleColumns+`
		FROM alert_rules WHERE organization_id = $1
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertRule
	for rows.Next() {
		a, err := scanAlertRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Update replaces an existing AlertRule's editable fields. Per decided
// behavior, editing a rule mid-cooldown does not reset last_triggered.
func (r *AlertRepo) Update(ctx context.Context, a *domain.AlertRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alert_rules SET name = $1, ad_account_id = $2, metric = $3, formula = $4, operator = $5,
		       threshold = $6, channels = $7, email_to = $8, im_to = $9, cooldown_minutes = $10, is_active = $11,
		       updated_at = NOW()
		WHERE id = $12 AND organization_id = $13
	`, a.Name, a.AdAccountID, a.Metric, a.Formula, a.Operator, a.Threshold, pq.Array(a.Channels), a.EmailTo, a.IMTo,
		a.CooldownMins, a.IsActive, a.ID, a.OrganizationID)
	if err != nil {
		return fmt.Errorf("update alert rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new AlertRule.
func (r *AlertRepo) Create(ctx context.Context, a *domain.AlertRule) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_rules
			(id, organization_id, name, ad_account_id, metric, formula, operator, threshold,
			 channels, email_to, im_to, cooldown_minutes, is_active, trigger_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, NOW(), NOW())
	`, a.ID, a.OrganizationID, a.Name, a.AdAccountID, a.Metric, a.Formula, a.Operator, a.Threshold,
		pq.Array(a.Channels), a.EmailTo, a.IMTo, a.CooldownMins, a.IsActive)
	if err != nil {
		return "", fmt.Errorf("create alert rule: %w", err)
	}
	return a.ID, nil
}

// MarkTriggered sets last_triggered to now and bumps trigger_count, starting
// the cooldown window.
func (r *AlertRepo) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alert_rules SET last_triggered = $1, trigger_count = trigger_count + 1 WHERE id = $2
	`, at, ruleID)
	if err != nil {
		return fmt.Errorf("mark alert rule triggered: %w", err)
	}
	return nil
}

// Delete removes an AlertRule; its AlertHistory rows remain for audit.
func (r *AlertRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordHistory appends an AlertHistory row; history is append-only and is
// never updated or deleted except by the data-cleanup retention task.
func (r *AlertRepo) RecordHistory(ctx context.Context, h *domain.AlertHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_history
			(id, alert_rule_id, organization_id, campaign_id, campaign_name, metric, metric_value, threshold,
			 message, channels_delivered, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, h.ID, h.AlertRuleID, h.OrganizationID, h.CampaignID, h.CampaignName, h.Metric, h.MetricValue, h.Threshold,
		h.Message, pq.Array(h.ChannelsDelivered), h.TriggeredAt)
	if err != nil {
		return fmt.Errorf("record alert history: %w", err)
	}
	return nil
}

// CleanupHistory deletes AlertHistory rows older than retention.
func (r *AlertRepo) CleanupHistory(ctx context.Context, retention time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM alert_history WHERE triggered_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("cleanup alert history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
