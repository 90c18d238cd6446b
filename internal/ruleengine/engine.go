// Package ruleengine evaluates AlertRules and AutomationRules against
// enriched campaign metrics and carries out their side effects: alerts
// notify, automations mutate the upstream ad platform and then notify.
package ruleengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/exprx"
	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/notify"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/upstream"
)

// AlertRepo is the subset of the alert repository the engine depends on.
type AlertRepo interface {
	ActiveRules(ctx context.Context, orgID string) ([]domain.AlertRule, error)
	MarkTriggered(ctx context.Context, ruleID string, at time.Time) error
	RecordHistory(ctx context.Context, h *domain.AlertHistory) error
}

// AutomationRepo is the subset of the automation repository the engine
// depends on.
type AutomationRepo interface {
	ActiveRules(ctx context.Context, orgID string) ([]domain.AutomationRule, error)
	MarkTriggered(ctx context.Context, ruleID string, at time.Time) error
	RecordLog(ctx context.Context, l *domain.AutomationLog) error
}

// campaignSnapshot is one campaign's identity plus its enriched metrics, the
// unit a rule condition matches against.
type campaignSnapshot struct {
	ID       string
	Name     string
	Enriched domain.Enriched[domain.Insight]
}

// Snapshot is one ad account's campaigns for a tick, keyed by campaign id, as
// fetched and enriched once per account per tick.
type Snapshot map[string]campaignSnapshot

// Engine formalizes the match predicate and side effects shared by alerts
// and automations.
type Engine struct {
	alerts      AlertRepo
	automations AutomationRepo
	upstream    *upstream.Client
	fanout      *notify.Fanout
}

// New creates a rule Engine.
func New(alerts AlertRepo, automations AutomationRepo, up *upstream.Client, fanout *notify.Fanout) *Engine {
	return &Engine{alerts: alerts, automations: automations, upstream: up, fanout: fanout}
}

// EvalResult describes the outcome of evaluating one rule for test/dry-run
// callers, which never persist history or mutate the upstream platform.
type EvalResult struct {
	Matched      bool    `json:"matched"`
	CampaignID   string  `json:"campaign_id,omitempty"`
	CampaignName string  `json:"campaign_name,omitempty"`
	MetricValue  float64 `json:"metric_value"`
	Threshold    float64 `json:"threshold"`
}

// ruleValue resolves the value a rule's condition compares against the
// threshold. MetricCustom rules evaluate their Formula through exprx against
// the campaign's derived metrics instead of reading a single fixed metric.
func ruleValue(metric domain.Metric, formula string, enriched domain.Enriched[domain.Insight]) (float64, error) {
	if metric != domain.MetricCustom {
		return enriched.Value(metric), nil
	}
	vars := make(exprx.Vars, len(enriched.Derived))
	for m, v := range enriched.Derived {
		vars[string(m)] = v
	}
	return exprx.Eval(formula, vars)
}

// DistinctAccounts returns the distinct, sorted ad_account_id values across
// both rule sets, the grouping key §4.3 requires so each account's snapshot
// is fetched at most once per tick. Either slice may be nil.
func DistinctAccounts(alerts []domain.AlertRule, automations []domain.AutomationRule) []string {
	seen := make(map[string]struct{})
	for _, r := range alerts {
		seen[r.AdAccountID] = struct{}{}
	}
	for _, r := range automations {
		seen[r.AdAccountID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// firstMatch walks snapshot's campaigns in a deterministic (sorted-id) order,
// restricted to campaignIDs when non-empty, and returns the first one whose
// condition matches. A rule fires at most once per tick regardless of how
// many campaigns match, per §4.4.
func firstMatch(snapshot Snapshot, campaignIDs []string, metric domain.Metric, formula string, op domain.ComparisonOp, threshold float64) (campaignSnapshot, bool, float64, error) {
	ids := campaignIDs
	if len(ids) == 0 {
		ids = make([]string, 0, len(snapshot))
		for id := range snapshot {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	for _, id := range ids {
		snap, ok := snapshot[id]
		if !ok {
			continue
		}
		value, err := ruleValue(metric, formula, snap.Enriched)
		if err != nil {
			return campaignSnapshot{}, false, 0, err
		}
		if op.Evaluate(value, threshold) {
			return snap, true, value, nil
		}
	}
	return campaignSnapshot{}, false, 0, nil
}

// alertMessage renders an AlertHistory/notification body using FormatMetric
// per the metric's display family.
func alertMessage(name string, campaignName string, metric domain.Metric, op domain.ComparisonOp, value, threshold float64) string {
	family := metric.Family()
	return fmt.Sprintf("%s: campaign %q — %s %s %s (threshold %s)",
		name, campaignName, metric, op, notify.FormatMetric(family, value), notify.FormatMetric(family, threshold))
}

// EvaluateAlerts runs every active AlertRule scoped to account in orgID
// against snapshot. A rule fires at most once per tick regardless of how many
// campaigns match, and skips silently while in cooldown.
func (e *Engine) EvaluateAlerts(ctx context.Context, orgID, account string, snapshot Snapshot) error {
	rules, err := e.alerts.ActiveRules(ctx, orgID)
	if err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}

	now := time.Now().UTC()
	for i := range rules {
		rule := rules[i]
		if rule.AdAccountID != account || rule.InCooldown(now) {
			continue
		}

		snap, matched, value, err := firstMatch(snapshot, nil, rule.Metric, rule.Formula, rule.Operator, rule.Threshold)
		if err != nil {
			logger.Warn("alert rule: formula evaluation failed", "rule_id", rule.ID, "error", err.Error())
			continue
		}
		metrics.RecordRuleEvaluation("alert", matched)
		if !matched {
			continue
		}

		if err := e.alerts.MarkTriggered(ctx, rule.ID, now); err != nil {
			logger.Warn("alert rule: mark triggered failed", "rule_id", rule.ID, "error", err.Error())
			continue
		}

		msg := alertMessage(rule.Name, snap.Name, rule.Metric, rule.Operator, value, rule.Threshold)
		if err := e.alerts.RecordHistory(ctx, &domain.AlertHistory{
			AlertRuleID: rule.ID, OrganizationID: orgID, CampaignID: snap.ID, CampaignName: snap.Name,
			Metric: rule.Metric, MetricValue: value, Threshold: rule.Threshold,
			Message: msg, ChannelsDelivered: rule.Channels, TriggeredAt: now,
		}); err != nil {
			logger.Warn("alert rule: record history failed", "rule_id", rule.ID, "error", err.Error())
		}

		e.fanout.Send(ctx, notify.Message{
			Title: rule.Name, Body: msg, OrganizationID: orgID,
			Channels: rule.Channels, EmailTo: rule.EmailTo, IMTo: rule.IMTo,
		})
	}
	return nil
}

// EvaluateAutomations runs every active AutomationRule scoped to account in
// orgID against snapshot, performing the declared upstream action on match
// before logging; it notifies when the action is notify or the action failed.
func (e *Engine) EvaluateAutomations(ctx context.Context, orgID, account string, snapshot Snapshot) error {
	rules, err := e.automations.ActiveRules(ctx, orgID)
	if err != nil {
		return fmt.Errorf("evaluate automations: %w", err)
	}

	now := time.Now().UTC()
	for i := range rules {
		rule := rules[i]
		if rule.AdAccountID != account || rule.InCooldown(now) {
			continue
		}

		snap, matched, value, err := firstMatch(snapshot, rule.CampaignIDs, rule.Metric, rule.Formula, rule.Operator, rule.Threshold)
		if err != nil {
			logger.Warn("automation rule: formula evaluation failed", "rule_id", rule.ID, "error", err.Error())
			continue
		}
		metrics.RecordRuleEvaluation("automation", matched)
		if !matched {
			continue
		}

		actErr := e.act(ctx, &rule, snap.ID)
		outcome := "success"
		if actErr != nil {
			outcome = "failed"
			logger.Warn("automation rule: action failed", "rule_id", rule.ID, "action", rule.Action, "error", actErr.Error())
		}
		metrics.RecordAutomationAction(string(rule.Action), outcome)

		if err := e.automations.MarkTriggered(ctx, rule.ID, now); err != nil {
			logger.Warn("automation rule: mark triggered failed", "rule_id", rule.ID, "error", err.Error())
		}

		msg := alertMessage(rule.Name, snap.Name, rule.Metric, rule.Operator, value, rule.Threshold)
		logEntry := &domain.AutomationLog{
			AutomationRuleID: rule.ID, OrganizationID: orgID, CampaignID: snap.ID, CampaignName: snap.Name,
			Action: rule.Action, Metric: rule.Metric, Threshold: rule.Threshold, MetricValue: value,
			Message: msg, Success: actErr == nil, ExecutedAt: now,
		}
		if actErr != nil {
			logEntry.Error = actErr.Error()
		}
		if err := e.automations.RecordLog(ctx, logEntry); err != nil {
			logger.Warn("automation rule: record log failed", "rule_id", rule.ID, "error", err.Error())
		}

		if rule.Action == domain.ActionNotify || actErr != nil {
			e.fanout.Send(ctx, notify.Message{
				Title: rule.Name, Body: msg, OrganizationID: orgID,
				Channels: rule.Channels, EmailTo: rule.EmailTo, IMTo: rule.IMTo,
			})
		}
	}
	return nil
}

// act performs an AutomationRule's declared action against the Upstream
// Client, scoped to the matched campaign.
func (e *Engine) act(ctx context.Context, rule *domain.AutomationRule, campaignID string) error {
	var err error
	switch rule.Action {
	case domain.ActionPause:
		err = e.upstream.PauseCampaign(ctx, campaignID)
	case domain.ActionResume:
		err = e.upstream.ResumeCampaign(ctx, campaignID)
	case domain.ActionNotify:
		return nil
	case domain.ActionBudgetDecrease:
		err = e.adjustBudgets(ctx, campaignID, rule.ActionValue, false)
	case domain.ActionBudgetIncrease:
		err = e.adjustBudgets(ctx, campaignID, rule.ActionValue, true)
	default:
		return apperr.Validation(fmt.Sprintf("ruleengine: unknown action %q", rule.Action))
	}
	if err == nil {
		e.upstream.InvalidateAccountCache(ctx, rule.AdAccountID, campaignID)
	}
	return err
}

// snapshotWindowDays is the trailing window campaigns are enriched over
// before their metrics are evaluated against rule conditions.
const snapshotWindowDays = 7

// BuildSnapshot fetches every campaign in account and builds the Snapshot a
// tick evaluates rule conditions against. Ad sets are not prefetched: a
// budget action resolves them lazily, at actuation time, against the matched
// campaign only (see adjustBudgets). Shared by the rule-check tick and the
// API's dry-run/check-all/run-now handlers so both paths evaluate against
// the same enrichment logic.
func BuildSnapshot(ctx context.Context, up *upstream.Client, account string) (Snapshot, error) {
	campaigns, err := up.ListCampaigns(ctx, snapshotWindowDays, account)
	if err != nil {
		return nil, fmt.Errorf("ruleengine: list campaigns: %w", err)
	}
	snapshot := make(Snapshot, len(campaigns))
	for _, c := range campaigns {
		snapshot[c.Raw.ID] = campaignSnapshot{
			ID:   c.Raw.ID,
			Name: c.Raw.Name,
			Enriched: domain.Enriched[domain.Insight]{
				Raw:     domain.Insight{EntityID: c.Raw.ID, EntityType: "campaign"},
				Derived: c.Derived,
			},
		}
	}
	return snapshot, nil
}

// DryRun evaluates a single AlertRule's condition against snapshot without
// consulting cooldown and without any side effect, for the API's manual test
// endpoint.
func DryRun(rule domain.AlertRule, snapshot Snapshot) EvalResult {
	snap, matched, value, err := firstMatch(snapshot, nil, rule.Metric, rule.Formula, rule.Operator, rule.Threshold)
	if err != nil {
		return EvalResult{Threshold: rule.Threshold}
	}
	return EvalResult{
		Matched: matched, CampaignID: snap.ID, CampaignName: snap.Name,
		MetricValue: value, Threshold: rule.Threshold,
	}
}

// DryRunAutomation evaluates a single AutomationRule's condition against
// snapshot without performing its action, for the manual-trigger endpoint's
// dry_run mode.
func DryRunAutomation(rule domain.AutomationRule, snapshot Snapshot) EvalResult {
	snap, matched, value, err := firstMatch(snapshot, rule.CampaignIDs, rule.Metric, rule.Formula, rule.Operator, rule.Threshold)
	if err != nil {
		return EvalResult{Threshold: rule.Threshold}
	}
	return EvalResult{
		Matched: matched, CampaignID: snap.ID, CampaignName: snap.Name,
		MetricValue: value, Threshold: rule.Threshold,
	}
}

// RunAutomation performs the API's manual-trigger contract for one
// AutomationRule: it ignores cooldown (the caller asked explicitly), performs
// the declared action against the Upstream Client, records an AutomationLog,
// and notifies when the action is notify or the action failed, mirroring
// EvaluateAutomations' per-rule body (without its metrics recording) so
// manual and scheduled runs behave alike.
func (e *Engine) RunAutomation(ctx context.Context, rule *domain.AutomationRule, snapshot Snapshot) (EvalResult, error) {
	snap, matched, value, err := firstMatch(snapshot, rule.CampaignIDs, rule.Metric, rule.Formula, rule.Operator, rule.Threshold)
	if err != nil {
		return EvalResult{Threshold: rule.Threshold}, apperr.Validation(fmt.Sprintf("ruleengine: formula evaluation failed: %s", err.Error()))
	}
	result := EvalResult{Matched: matched, CampaignID: snap.ID, CampaignName: snap.Name, MetricValue: value, Threshold: rule.Threshold}
	if !matched {
		return result, nil
	}

	now := time.Now().UTC()
	actErr := e.act(ctx, rule, snap.ID)
	if err := e.automations.MarkTriggered(ctx, rule.ID, now); err != nil {
		logger.Warn("automation rule: mark triggered failed", "rule_id", rule.ID, "error", err.Error())
	}

	msg := alertMessage(rule.Name, snap.Name, rule.Metric, rule.Operator, value, rule.Threshold)
	logEntry := &domain.AutomationLog{
		AutomationRuleID: rule.ID, OrganizationID: rule.OrganizationID, CampaignID: snap.ID, CampaignName: snap.Name,
		Action: rule.Action, Metric: rule.Metric, Threshold: rule.Threshold, MetricValue: value,
		Message: msg, Success: actErr == nil, ExecutedAt: now,
	}
	if actErr != nil {
		logEntry.Error = actErr.Error()
	}
	if err := e.automations.RecordLog(ctx, logEntry); err != nil {
		logger.Warn("automation rule: record log failed", "rule_id", rule.ID, "error", err.Error())
	}

	if rule.Action == domain.ActionNotify || actErr != nil {
		e.fanout.Send(ctx, notify.Message{
			Title: rule.Name, Body: msg, OrganizationID: rule.OrganizationID,
			Channels: rule.Channels, EmailTo: rule.EmailTo, IMTo: rule.IMTo,
		})
	}

	return result, actErr
}
