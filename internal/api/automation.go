package api

import (
	"net/http"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
	"github.com/ignite/adcontrol/internal/ruleengine"
)

// automationRuleRequest is the editable subset of AutomationRule a caller
// posts.
type automationRuleRequest struct {
	Name         string                  `json:"name"`
	AdAccountID  string                  `json:"ad_account_id"`
	CampaignIDs  []string                `json:"campaign_ids,omitempty"`
	Metric       domain.Metric           `json:"metric"`
	Formula      string                  `json:"formula,omitempty"`
	Operator     domain.ComparisonOp     `json:"operator"`
	Threshold    float64                 `json:"threshold"`
	Action       domain.AutomationAction `json:"action"`
	ActionValue  float64                 `json:"action_value,omitempty"`
	Channels     []string                `json:"channels,omitempty"`
	EmailTo      string                  `json:"email_to,omitempty"`
	IMTo         string                  `json:"im_to,omitempty"`
	CooldownMins int                     `json:"cooldown_minutes"`
	IsActive     *bool                   `json:"is_active"`
}

func (req automationRuleRequest) validate() error {
	if req.Name == "" || req.Metric == "" || req.Action == "" {
		return apperr.Validation("name, metric, and action are required")
	}
	if req.Metric == domain.MetricCustom && req.Formula == "" {
		return apperr.Validation("formula is required when metric is \"custom\"")
	}
	switch req.Action {
	case domain.ActionPause, domain.ActionResume, domain.ActionNotify, domain.ActionBudgetDecrease, domain.ActionBudgetIncrease:
	default:
		return apperr.Validation("action must be one of: pause, resume, notify, budget_decrease, budget_increase")
	}
	if req.Action.IsBudgetAction() && req.ActionValue <= 0 {
		return apperr.Validation("action_value must be a positive percentage for budget_decrease/budget_increase")
	}
	return nil
}

func (req automationRuleRequest) applyTo(a *domain.AutomationRule) {
	a.Name = req.Name
	a.AdAccountID = req.AdAccountID
	a.CampaignIDs = req.CampaignIDs
	a.Metric = req.Metric
	a.Formula = req.Formula
	a.Operator = req.Operator
	a.Threshold = req.Threshold
	a.Action = req.Action
	a.ActionValue = req.ActionValue
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

// ListAutomationRules returns every AutomationRule in the organization.
func (h *Handlers) ListAutomationRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Automations.ListAll(r.Context(), h.OrganizationID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rules)
}

// GetAutomationRule returns one AutomationRule by id.
func (h *Handlers) GetAutomationRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Automations.Get(r.Context(), h.OrganizationID, urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, rule)
}

// CreateAutomationRule saves a new AutomationRule.
func (h *Handlers) CreateAutomationRule(w http.ResponseWriter, r *http.Request) {
	var req automationRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}

	rule := &domain.AutomationRule{OrganizationID: h.OrganizationID}
	req.applyTo(rule)
	id, err := h.Automations.Create(r.Context(), rule)
	if err != nil {
		writeErr(w, apperr.Internal("create automation rule", err))
		return
	}
	rule.ID = id
	httputil.Created(w, rule)
}

// UpdateAutomationRule replaces an existing AutomationRule's editable fields.
func (h *Handlers) UpdateAutomationRule(w http.ResponseWriter, r *http.Request) {
	var req automationRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, err)
		return
	}

	id := urlParam(r, "id")
	existing, err := h.Automations.Get(r.Context(), h.OrganizationID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	req.applyTo(existing)
	if err := h.Automations.Update(r.Context(), existing); err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, existing)
}

// DeleteAutomationRule removes an AutomationRule; its log rows remain for
// audit.
func (h *Handlers) DeleteAutomationRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Automations.Delete(r.Context(), h.OrganizationID, urlParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	httputil.NoContent(w)
}

// RunAutomationRule manually triggers one AutomationRule against a freshly
// fetched snapshot of its ad account, bypassing cooldown. With
// ?dry_run=true it only reports whether the condition currently matches,
// performing neither the action nor the cooldown/log side effects.
func (h *Handlers) RunAutomationRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Automations.Get(r.Context(), h.OrganizationID, urlParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	snapshot, err := ruleengine.BuildSnapshot(r.Context(), h.Upstream, rule.AdAccountID)
	if err != nil {
		writeErr(w, err)
		return
	}

	if r.URL.Query().Get("dry_run") == "true" {
		httputil.OK(w, ruleengine.DryRunAutomation(*rule, snapshot))
		return
	}

	result, err := h.Engine.RunAutomation(r.Context(), rule, snapshot)
	if err != nil {
		// The action itself may have failed upstream; the attempt was still
		// logged and notified, so report 200 with the failure recorded in
		// the result rather than masking it behind a 500.
		if apperr.KindOf(err) == apperr.KindUpstreamTransient || apperr.KindOf(err) == apperr.KindUpstreamOther {
			httputil.OK(w, map[string]any{"result": result, "action_error": err.Error()})
			return
		}
		writeErr(w, err)
		return
	}
	httputil.OK(w, result)
}
