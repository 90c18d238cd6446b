// Package reportcatalog is the Report Materializer: a fixed catalog of
// report templates, each declaring a data source, an optional breakdown
// key, and a canonical column ordering, plus the logic that fetches rows
// from the Upstream Client and reshapes them into that column shape.
package reportcatalog

import "github.com/ignite/adcontrol/internal/domain"

// Source enumerates the data a template draws from.
type Source string

const (
	SourceCampaigns Source = "campaigns"
	SourceAdSets    Source = "adsets"
	SourceAds       Source = "ads"
	SourceDaily     Source = "daily"
	SourceBreakdown Source = "breakdown"
)

// Template declares one report shape in the catalog: where its rows come
// from and the exact, ordered set of columns every row is projected to.
type Template struct {
	ID        string
	Name      string
	Source    Source
	Breakdown domain.BreakdownKey // only meaningful when Source == SourceBreakdown
	Columns   []string
}

// Catalog is the fixed set of report templates available to saved recipes,
// scheduled reports, and on-demand exports.
var Catalog = map[string]Template{
	"campaign_summary": {
		ID: "campaign_summary", Name: "Campaign Summary", Source: SourceCampaigns,
		Columns: []string{"campaign_id", "campaign_name", "status", "daily_budget", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"campaign_performance_ranked": {
		ID: "campaign_performance_ranked", Name: "Campaign Performance (Ranked by Spend)", Source: SourceCampaigns,
		Columns: []string{"campaign_id", "campaign_name", "spend", "roas", "cpa"},
	},
	"adset_summary": {
		ID: "adset_summary", Name: "Ad Set Summary", Source: SourceAdSets,
		Columns: []string{"ad_set_id", "campaign_id", "ad_set_name", "status", "bid_amount", "daily_budget", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"adset_budget_pacing": {
		ID: "adset_budget_pacing", Name: "Ad Set Budget Pacing", Source: SourceAdSets,
		Columns: []string{"ad_set_id", "ad_set_name", "daily_budget", "lifetime_budget", "spend"},
	},
	"ad_summary": {
		ID: "ad_summary", Name: "Ad Summary", Source: SourceAds,
		Columns: []string{"ad_id", "ad_set_id", "ad_name", "status", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc"},
	},
	"ad_creative_performance": {
		ID: "ad_creative_performance", Name: "Ad Creative Performance", Source: SourceAds,
		Columns: []string{"ad_id", "ad_name", "impressions", "clicks", "ctr", "cpm"},
	},
	"daily_trend": {
		ID: "daily_trend", Name: "Daily Performance Trend", Source: SourceDaily,
		Columns: []string{"date", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"daily_spend_pacing": {
		ID: "daily_spend_pacing", Name: "Daily Spend Pacing", Source: SourceDaily,
		Columns: []string{"date", "spend", "cpm", "frequency"},
	},
	"breakdown_age": {
		ID: "breakdown_age", Name: "Performance by Age", Source: SourceBreakdown, Breakdown: domain.BreakdownAge,
		Columns: []string{"date", "age", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"breakdown_gender": {
		ID: "breakdown_gender", Name: "Performance by Gender", Source: SourceBreakdown, Breakdown: domain.BreakdownGender,
		Columns: []string{"date", "gender", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"breakdown_placement": {
		ID: "breakdown_placement", Name: "Performance by Placement", Source: SourceBreakdown, Breakdown: domain.BreakdownPlacement,
		Columns: []string{"date", "publisher_platform", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"breakdown_platform_position": {
		ID: "breakdown_platform_position", Name: "Performance by Placement Position", Source: SourceBreakdown, Breakdown: domain.BreakdownPlatformPosition,
		Columns: []string{"date", "platform_position", "impressions", "clicks", "spend", "ctr", "cpm", "frequency"},
	},
	"breakdown_device": {
		ID: "breakdown_device", Name: "Performance by Device", Source: SourceBreakdown, Breakdown: domain.BreakdownDevice,
		Columns: []string{"date", "impression_device", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"breakdown_region": {
		ID: "breakdown_region", Name: "Performance by Region", Source: SourceBreakdown, Breakdown: domain.BreakdownRegion,
		Columns: []string{"date", "region", "impressions", "clicks", "spend", "conversions", "revenue", "ctr", "cpc", "cpa", "roas"},
	},
	"conversion_funnel": {
		ID: "conversion_funnel", Name: "Conversion Funnel", Source: SourceDaily,
		Columns: []string{"date", "impressions", "clicks", "ctr", "conversions", "cpa", "revenue", "roas"},
	},
	"account_rollup": {
		ID: "account_rollup", Name: "Account Rollup", Source: SourceCampaigns,
		Columns: []string{"campaign_id", "campaign_name", "objective", "impressions", "clicks", "spend", "conversions", "revenue"},
	},
}

// Get looks up a template by id.
func Get(id string) (Template, bool) {
	t, ok := Catalog[id]
	return t, ok
}
