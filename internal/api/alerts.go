package api

import (
	"net/http"
	"time"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/ignite/adcontrol/internal/ruleengine"
)

// alertRuleRequest is the editable subset of AlertRule a caller posts.
type alertRuleRequest struct {
	Name         string              `json:"name"`
	AdAccountID  string              `json:"ad_account_id"`
	Metric       domain.Metric       `json:"metric"`
	Formula      string              `json:"formula,omitempty"`
	Operator     domain.ComparisonOp `json:"operator"`
	Threshold    float64             `json:"threshold"`
	Channels     []string            `json:"channels,omitempty"`
	EmailTo      string              `json:"email_to,omitempty"`
	IMTo         string              `json:"im_to,omitempty"`
	CooldownMins int                 `json:"cooldown_minutes"`
	IsActive     *bool               `json:"is_active"`
}

func (req alertRuleRequest) validate() error {
	if req.Name == "" || req.Metric == "" {
		return apperr.Validation("name and metric are required")
	}
	if req.Metric == domain.MetricCustom && req.Formula == "" {
		return apperr.Validation("formula is required when metric is \"custom\"")
	}
	return nil
}

func (req alertRuleRequest) applyTo(a *domain.AlertRule) {
	a.Name = req.Name
	a.AdAccountID = req.AdAccountID
	a.Metric = req.Metric
	a.Formula = req.Formula
	a.Operator = req.Operator
	a.Threshold = req.Threshold
	a.Channels = req.Channels
	a.EmailTo = req.EmailTo
	a.IMTo = req.IMTo
	a.CooldownMins = req.CooldownMins
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	} else {
		a.IsActive = true
	}
}

// ListAlertRules returns every AlertRule in the organization.
func (h *Handlers) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Alerts.ListAll(r.Context(), h.OrganizationID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rules)
}

// GetAlertRule returns one AlertRule by id.
func (h *Handlers) GetAlertRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Alerts.Get(r.Context(), h.OrganizationID, urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rule)
}

// CreateAlertRule saves a new AlertRule.
func (h *Handlers) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req alertRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}

	rule := &domain.AlertRule{OrganizationID: h.OrganizationID}
	req.applyTo(rule)
	id, err := h.Alerts.Create(r.Context(), rule)
	if err != nil {
		writeErr(w, apperr.Internal("create alert rule", err))
		return
	}
	rule.ID = id
	httputil.Created(w, rule)
}

// UpdateAlertRule replaces an existing AlertRule's editable fields.
func (h *Handlers) UpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req alertRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}

	id := urlParam(r, "id")
	existing, err := h.Alerts.Get(r.Context(), h.OrganizationID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	req.applyTo(existing)
	if err := h.Alerts.Update(r.Context(), existing); err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, existing)
}

// DeleteAlertRule removes an AlertRule; its history rows remain for audit.
func (h *Handlers) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerts.Delete(r.Context(), h.OrganizationID, urlParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	httputil.NoContent(w)
}

// ToggleAlertRule flips an AlertRule's is_active flag.
func (h *Handlers) ToggleAlertRule(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	rule, err := h.Alerts.Get(r.Context(), h.OrganizationID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	rule.IsActive = !rule.IsActive
	if err := h.Alerts.Update(r.Context(), rule); err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rule)
}

// TestAlertRule evaluates one AlertRule against a freshly fetched snapshot
// of its ad account without consulting cooldown or recording history, for
// the "test before you save it" workflow.
func (h *Handlers) TestAlertRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Alerts.Get(r.Context(), h.OrganizationID, urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	snapshot, err := ruleengine.BuildSnapshot(r.Context(), h.Upstream, rule.AdAccountID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, ruleengine.DryRun(*rule, snapshot))
}

// CheckAllAlerts force-runs the full alert evaluation pass across every ad
// account with an active rule, bypassing the Scheduler's cadence. An
// account whose snapshot fails to fetch is logged and skipped; the rest
// still run. Cooldown still applies per rule since this reuses
// EvaluateAlerts itself.
func (h *Handlers) CheckAllAlerts(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Alerts.ActiveRules(r.Context(), h.OrganizationID)
	if err != nil {
		writeErr(w, apperr.Internal("load active alert rules", err))
		return
	}

	accounts := ruleengine.DistinctAccounts(rules, nil)
	checkedEntities := 0
	checkedAccounts := 0
	for _, account := range accounts {
		snapshot, err := ruleengine.BuildSnapshot(r.Context(), h.Upstream, account)
		if err != nil {
			logger.Warn("check all alerts: snapshot fetch failed", "ad_account_id", account, "error", err.Error())
			continue
		}
		if err := h.Engine.EvaluateAlerts(r.Context(), h.OrganizationID, account, snapshot); err != nil {
			logger.Warn("check all alerts: evaluation failed", "ad_account_id", account, "error", err.Error())
			continue
		}
		checkedAccounts++
		checkedEntities += len(snapshot)
	}

	httputil.OK(w, map[string]any{
		"checked_at":        time.Now().UTC(),
		"accounts_checked":  checkedAccounts,
		"accounts_total":    len(accounts),
		"snapshot_entities": checkedEntities,
	})
}
