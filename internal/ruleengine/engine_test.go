package ruleengine

import (
	"testing"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/stretchr/testify/require"
)

func snap(id, name string, derived map[domain.Metric]float64) campaignSnapshot {
	return campaignSnapshot{
		ID:   id,
		Name: name,
		Enriched: domain.Enriched[domain.Insight]{
			Raw:     domain.Insight{EntityID: id, EntityType: "campaign"},
			Derived: derived,
		},
	}
}

func TestDistinctAccountsDedupesAndSorts(t *testing.T) {
	alerts := []domain.AlertRule{
		{AdAccountID: "act_2"},
		{AdAccountID: "act_1"},
	}
	automations := []domain.AutomationRule{
		{AdAccountID: "act_1"},
		{AdAccountID: "act_3"},
	}
	require.Equal(t, []string{"act_1", "act_2", "act_3"}, DistinctAccounts(alerts, automations))
}

func TestDistinctAccountsHandlesNilSlices(t *testing.T) {
	require.Empty(t, DistinctAccounts(nil, nil))
}

func TestDryRunMatchesFirstQualifyingCampaign(t *testing.T) {
	snapshot := Snapshot{
		"c2": snap("c2", "Campaign Two", map[domain.Metric]float64{domain.MetricSpend: 50}),
		"c1": snap("c1", "Campaign One", map[domain.Metric]float64{domain.MetricSpend: 150}),
	}
	rule := domain.AlertRule{
		Metric: domain.MetricSpend, Operator: domain.OpGreaterThan, Threshold: 100,
	}
	result := DryRun(rule, snapshot)
	require.True(t, result.Matched)
	require.Equal(t, "c1", result.CampaignID, "sorted-id iteration picks c1 before c2")
	require.Equal(t, 150.0, result.MetricValue)
}

func TestDryRunNoMatch(t *testing.T) {
	snapshot := Snapshot{
		"c1": snap("c1", "Campaign One", map[domain.Metric]float64{domain.MetricSpend: 50}),
	}
	rule := domain.AlertRule{Metric: domain.MetricSpend, Operator: domain.OpGreaterThan, Threshold: 100}
	require.False(t, DryRun(rule, snapshot).Matched)
}

func TestDryRunAutomationRestrictsToCampaignIDs(t *testing.T) {
	snapshot := Snapshot{
		"c1": snap("c1", "Campaign One", map[domain.Metric]float64{domain.MetricCPA: 40}),
		"c2": snap("c2", "Campaign Two", map[domain.Metric]float64{domain.MetricCPA: 40}),
	}
	rule := domain.AutomationRule{
		Metric: domain.MetricCPA, Operator: domain.OpGreaterThan, Threshold: 30,
		CampaignIDs: []string{"c2"},
	}
	result := DryRunAutomation(rule, snapshot)
	require.True(t, result.Matched)
	require.Equal(t, "c2", result.CampaignID)
}

func TestDryRunAutomationCustomFormula(t *testing.T) {
	snapshot := Snapshot{
		"c1": snap("c1", "Campaign One", map[domain.Metric]float64{
			domain.MetricSpend:   100,
			domain.MetricRevenue: 50,
		}),
	}
	rule := domain.AutomationRule{
		Metric: domain.MetricCustom, Formula: "spend - revenue",
		Operator: domain.OpGreaterThan, Threshold: 25,
	}
	result := DryRunAutomation(rule, snapshot)
	require.True(t, result.Matched)
	require.Equal(t, 50.0, result.MetricValue)
}

func TestDryRunAutomationBadFormulaDoesNotMatch(t *testing.T) {
	snapshot := Snapshot{
		"c1": snap("c1", "Campaign One", map[domain.Metric]float64{domain.MetricSpend: 100}),
	}
	rule := domain.AutomationRule{
		Metric: domain.MetricCustom, Formula: "not a formula (",
		Operator: domain.OpGreaterThan, Threshold: 0,
	}
	require.False(t, DryRunAutomation(rule, snapshot).Matched)
}

func TestAlertMessageFormatsByMetricFamily(t *testing.T) {
	msg := alertMessage("High spend", "My Campaign", domain.MetricSpend, domain.OpGreaterThan, 123.456, 100)
	require.Contains(t, msg, "High spend")
	require.Contains(t, msg, `"My Campaign"`)
	require.Contains(t, msg, "spend")
}

func TestComparisonOpEvaluate(t *testing.T) {
	cases := []struct {
		op       domain.ComparisonOp
		actual   float64
		want     bool
	}{
		{domain.OpGreaterThan, 5, true},
		{domain.OpLessThan, 5, false},
		{domain.OpGreaterEqual, 3, true},
		{domain.OpLessEqual, 3, true},
		{domain.OpEqual, 3, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.op.Evaluate(tc.actual, 3), "op=%s actual=%v", tc.op, tc.actual)
	}
}
