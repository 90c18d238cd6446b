package upstream

import "github.com/ignite/adcontrol/internal/domain"

// conversionActionSet is ConversionActionTypes as a lookup set.
var conversionActionSet = func() map[string]bool {
	m := make(map[string]bool, len(domain.ConversionActionTypes))
	for _, t := range domain.ConversionActionTypes {
		m[t] = true
	}
	return m
}()

// sumActions derives conversions (count, summed across the whitelisted
// action types) and conversion_value (summed from action_values where
// action_type=purchase) per §4.1. When the raw Insight carries no action
// arrays (e.g. a test fixture or a pre-aggregated upstream response), the
// already-populated Conversions/Revenue fields are used as-is.
func sumActions(raw domain.Insight) (conversions float64, value float64) {
	if len(raw.Actions) == 0 && len(raw.ActionValue) == 0 {
		return float64(raw.Conversions), raw.Revenue
	}
	for _, a := range raw.Actions {
		if conversionActionSet[a.ActionType] {
			conversions += a.Value
		}
	}
	for _, a := range raw.ActionValue {
		if a.ActionType == "purchase" {
			value += a.Value
		}
	}
	return conversions, value
}

// Enrich computes the derived metrics (CTR, CPC, CPA, ROAS, CPM, conversions,
// conversion_value) for a raw Insight. Divisions by zero resolve to 0 rather
// than NaN/Inf so downstream reports and rule evaluations never have to
// special-case a missing ratio.
func Enrich(raw domain.Insight) domain.Enriched[domain.Insight] {
	conversions, conversionValue := sumActions(raw)

	derived := map[domain.Metric]float64{
		domain.MetricImpressions: float64(raw.Impressions),
		domain.MetricClicks:      float64(raw.Clicks),
		domain.MetricSpend:       raw.Spend,
		domain.MetricConversions: conversions,
		domain.MetricRevenue:     conversionValue,
		domain.MetricFrequency:   raw.Frequency,
	}

	if raw.Impressions > 0 {
		derived[domain.MetricCTR] = float64(raw.Clicks) / float64(raw.Impressions) * 100
		derived[domain.MetricCPM] = raw.Spend / float64(raw.Impressions) * 1000
	}
	if raw.Clicks > 0 {
		derived[domain.MetricCPC] = raw.Spend / float64(raw.Clicks)
	}
	if conversions > 0 {
		derived[domain.MetricCPA] = raw.Spend / conversions
	}
	derived[domain.MetricROAS] = 0
	if raw.Spend > 0 {
		derived[domain.MetricROAS] = conversionValue / raw.Spend
	}

	return domain.Enriched[domain.Insight]{Raw: raw, Derived: derived}
}

// ToBreakdownRow flattens an Enriched Insight into the flat row shape the
// Report Materializer renders to CSV.
func ToBreakdownRow(name string, e domain.Enriched[domain.Insight]) domain.DailyBreakdownRow {
	return domain.DailyBreakdownRow{
		Date:        e.Raw.Date,
		EntityID:    e.Raw.EntityID,
		EntityName:  name,
		Impressions: e.Raw.Impressions,
		Clicks:      e.Raw.Clicks,
		Spend:       e.Raw.Spend,
		Conversions: int64(e.Value(domain.MetricConversions)),
		Revenue:     e.Value(domain.MetricRevenue),
		CTR:         e.Value(domain.MetricCTR),
		CPC:         e.Value(domain.MetricCPC),
		CPA:         e.Value(domain.MetricCPA),
		ROAS:        e.Value(domain.MetricROAS),
	}
}
