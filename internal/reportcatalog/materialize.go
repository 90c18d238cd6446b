package reportcatalog

import (
	"context"
	"fmt"
	"math"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/upstream"
)

// upstreamReader is the subset of upstream.Client the Materializer depends
// on, narrowed so tests can substitute a fake without a real HTTP client.
type upstreamReader interface {
	ListCampaigns(ctx context.Context, days int, account string) ([]domain.Enriched[domain.Campaign], error)
	ListAdSets(ctx context.Context, campaign string, days int, account string) ([]domain.Enriched[domain.AdSet], error)
	ListAds(ctx context.Context, campaign string, days int, account string) ([]domain.Enriched[domain.Ad], error)
	GetDailyBreakdown(ctx context.Context, days int, account string) ([]domain.DailyBreakdownRow, error)
	ListInsightsWithBreakdown(ctx context.Context, account string, days int, breakdown domain.BreakdownKey, increment string) ([]domain.Insight, error)
}

var _ upstreamReader = (*upstream.Client)(nil)

// currencyColumns and percentColumns drive the 2-decimal rounding rule and
// ratioColumns render with 3 decimals; every other numeric column (counts)
// renders as an integer when whole, otherwise with 2 decimals.
var currencyColumns = map[string]bool{"spend": true, "revenue": true, "cpc": true, "cpa": true, "daily_budget": true, "lifetime_budget": true, "bid_amount": true, "cpm": true}
var percentColumns = map[string]bool{"ctr": true}
var ratioColumns = map[string]bool{"roas": true, "frequency": true}

// Materializer fetches rows through the Upstream Client and reshapes each
// into a template's canonical column set, the component the export and
// analyze Worker Pool tasks both delegate to.
type Materializer struct {
	upstream upstreamReader
}

// NewMaterializer creates a Materializer over up.
func NewMaterializer(up upstreamReader) *Materializer {
	return &Materializer{upstream: up}
}

// Row is one normalized report row: every column from the template's
// Columns slice is present, defaulting to "" when the underlying data has
// no value for it.
type Row map[string]string

// Materialize fetches and reshapes rows for templateID over the trailing
// `days` window for account (or the client's default account if empty).
func (m *Materializer) Materialize(ctx context.Context, templateID string, days int, account string) ([]Row, error) {
	tmpl, ok := Get(templateID)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("reportcatalog: unknown template %q", templateID))
	}

	var raw []map[string]any
	var err error
	switch tmpl.Source {
	case SourceCampaigns:
		raw, err = m.fetchCampaigns(ctx, days, account)
	case SourceAdSets:
		raw, err = m.fetchAdSets(ctx, days, account)
	case SourceAds:
		raw, err = m.fetchAds(ctx, days, account)
	case SourceDaily:
		raw, err = m.fetchDaily(ctx, days, account)
	case SourceBreakdown:
		raw, err = m.fetchBreakdown(ctx, days, account, tmpl.Breakdown)
	default:
		return nil, apperr.Internal(fmt.Sprintf("reportcatalog: unhandled source %q", tmpl.Source), nil)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, project(tmpl.Columns, r))
	}
	return rows, nil
}

func project(columns []string, fields map[string]any) Row {
	row := make(Row, len(columns))
	for _, col := range columns {
		v, ok := fields[col]
		if !ok || v == nil {
			row[col] = ""
			continue
		}
		row[col] = format(col, v)
	}
	return row
}

func format(col string, v any) string {
	f, isFloat := v.(float64)
	if !isFloat {
		return fmt.Sprint(v)
	}
	if currencyColumns[col] || percentColumns[col] {
		return fmt.Sprintf("%.2f", round2(f))
	}
	if ratioColumns[col] {
		return fmt.Sprintf("%.3f", f)
	}
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (m *Materializer) fetchCampaigns(ctx context.Context, days int, account string) ([]map[string]any, error) {
	list, err := m.upstream.ListCampaigns(ctx, days, account)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, map[string]any{
			"campaign_id": c.Raw.ID, "campaign_name": c.Raw.Name, "status": string(c.Raw.Status),
			"objective": c.Raw.Objective, "daily_budget": c.Raw.DailyBudget,
			"impressions": c.Value(domain.MetricImpressions), "clicks": c.Value(domain.MetricClicks),
			"spend": c.Value(domain.MetricSpend), "conversions": c.Value(domain.MetricConversions),
			"revenue": c.Value(domain.MetricRevenue), "ctr": c.Value(domain.MetricCTR),
			"cpc": c.Value(domain.MetricCPC), "cpa": c.Value(domain.MetricCPA), "roas": c.Value(domain.MetricROAS),
		})
	}
	return out, nil
}

func (m *Materializer) fetchAdSets(ctx context.Context, days int, account string) ([]map[string]any, error) {
	list, err := m.upstream.ListAdSets(ctx, "", days, account)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, map[string]any{
			"ad_set_id": a.Raw.ID, "campaign_id": a.Raw.CampaignID, "ad_set_name": a.Raw.Name,
			"status": string(a.Raw.Status), "bid_amount": a.Raw.BidAmount, "daily_budget": a.Raw.DailyBudget,
			"lifetime_budget": a.Raw.LifetimeBudget,
			"impressions":     a.Value(domain.MetricImpressions), "clicks": a.Value(domain.MetricClicks),
			"spend": a.Value(domain.MetricSpend), "conversions": a.Value(domain.MetricConversions),
			"revenue": a.Value(domain.MetricRevenue), "ctr": a.Value(domain.MetricCTR),
			"cpc": a.Value(domain.MetricCPC), "cpa": a.Value(domain.MetricCPA), "roas": a.Value(domain.MetricROAS),
		})
	}
	return out, nil
}

func (m *Materializer) fetchAds(ctx context.Context, days int, account string) ([]map[string]any, error) {
	list, err := m.upstream.ListAds(ctx, "", days, account)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, map[string]any{
			"ad_id": a.Raw.ID, "ad_set_id": a.Raw.AdSetID, "ad_name": a.Raw.Name, "status": string(a.Raw.Status),
			"impressions": a.Value(domain.MetricImpressions), "clicks": a.Value(domain.MetricClicks),
			"spend": a.Value(domain.MetricSpend), "conversions": a.Value(domain.MetricConversions),
			"revenue": a.Value(domain.MetricRevenue), "ctr": a.Value(domain.MetricCTR),
			"cpc": a.Value(domain.MetricCPC), "cpm": a.Value(domain.MetricCPM),
		})
	}
	return out, nil
}

func (m *Materializer) fetchDaily(ctx context.Context, days int, account string) ([]map[string]any, error) {
	rows, err := m.upstream.GetDailyBreakdown(ctx, days, account)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]any{
			"date": r.Date.Format("2006-01-02"), "impressions": float64(r.Impressions), "clicks": float64(r.Clicks),
			"spend": r.Spend, "conversions": float64(r.Conversions), "revenue": r.Revenue,
			"ctr": r.CTR, "cpc": r.CPC, "cpa": r.CPA, "roas": r.ROAS,
			"cpm": 0.0, "frequency": 0.0,
		})
	}
	return out, nil
}

func (m *Materializer) fetchBreakdown(ctx context.Context, days int, account string, key domain.BreakdownKey) ([]map[string]any, error) {
	insights, err := m.upstream.ListInsightsWithBreakdown(ctx, account, days, key, "1")
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(insights))
	for _, raw := range insights {
		enriched := upstream.Enrich(raw)
		row := map[string]any{
			"date": raw.Date.Format("2006-01-02"), string(key): raw.BreakdownValue,
			"impressions": enriched.Value(domain.MetricImpressions), "clicks": enriched.Value(domain.MetricClicks),
			"spend": enriched.Value(domain.MetricSpend), "conversions": enriched.Value(domain.MetricConversions),
			"revenue": enriched.Value(domain.MetricRevenue), "ctr": enriched.Value(domain.MetricCTR),
			"cpc": enriched.Value(domain.MetricCPC), "cpa": enriched.Value(domain.MetricCPA),
			"roas": enriched.Value(domain.MetricROAS), "cpm": enriched.Value(domain.MetricCPM),
			"frequency": enriched.Value(domain.MetricFrequency),
		}
		out = append(out, row)
	}
	return out, nil
}
