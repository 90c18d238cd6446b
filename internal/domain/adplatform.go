package domain

import "time"

// Metric enumerates the raw and derived performance figures the Metric
// Enricher can compute and the Rule Engine can reference by name.
type Metric string

const (
	MetricImpressions Metric = "impressions"
	MetricClicks      Metric = "clicks"
	MetricSpend       Metric = "spend"
	MetricConversions Metric = "conversions"
	MetricRevenue     Metric = "revenue"
	MetricCTR         Metric = "ctr"
	MetricCPC         Metric = "cpc"
	MetricCPA         Metric = "cpa"
	MetricROAS        Metric = "roas"
	MetricCPM         Metric = "cpm"
	MetricFrequency   Metric = "frequency"

	// MetricCustom marks a rule whose condition is evaluated from its Formula
	// field through internal/exprx instead of a fixed derived metric.
	MetricCustom Metric = "custom"
)

// Family classifies a metric for notification formatting per §4.5: ctr reads
// as a percentage, the money metrics as currency, roas/frequency as a bare
// ratio. Count metrics and custom formulas fall through to the default
// formatter.
func (m Metric) Family() string {
	switch m {
	case MetricCTR:
		return "percent"
	case MetricSpend, MetricCPC, MetricCPA, MetricCPM, MetricRevenue:
		return "currency"
	case MetricROAS, MetricFrequency:
		return "ratio"
	default:
		return ""
	}
}

// ConversionActionTypes enumerates the upstream action_type values the
// Metric Enricher sums into the synthetic "conversions" figure; "purchase"
// additionally contributes to conversion_value.
var ConversionActionTypes = []string{
	"purchase",
	"lead",
	"complete_registration",
	"onsite_conversion.post_save",
	"omni_view_content",
}

// CampaignStatus enumerates the lifecycle states of an upstream ad campaign.
type CampaignStatus string

const (
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
	CampaignDeleted  CampaignStatus = "deleted"
)

// Campaign mirrors an upstream ad-platform campaign.
type Campaign struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	Status         CampaignStatus `json:"status"`
	DailyBudget    float64        `json:"daily_budget"`
	Objective      string         `json:"objective"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AdSet mirrors an upstream ad set belonging to a Campaign.
type AdSet struct {
	ID             string         `json:"id"`
	CampaignID     string         `json:"campaign_id"`
	Name           string         `json:"name"`
	Status         CampaignStatus `json:"status"`
	BidAmount      float64        `json:"bid_amount"`
	DailyBudget    float64        `json:"daily_budget,omitempty"`
	LifetimeBudget float64        `json:"lifetime_budget,omitempty"`
}

// HasLifetimeBudget reports whether the ad set is funded by a lifetime cap
// rather than a daily cap; automation budget actions skip these per §4.4.
func (a AdSet) HasLifetimeBudget() bool {
	return a.LifetimeBudget > 0 && a.DailyBudget == 0
}

// Ad mirrors an upstream creative belonging to an AdSet.
type Ad struct {
	ID      string         `json:"id"`
	AdSetID string         `json:"ad_set_id"`
	Name    string         `json:"name"`
	Status  CampaignStatus `json:"status"`
}

// AdAccount is an ad-platform account visible to the configured token,
// returned by list_ad_accounts.
type AdAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
}

// AccountSummary is the single aggregate record get_account_summary returns
// for an account over a window.
type AccountSummary struct {
	AccountID   string  `json:"account_id"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// AdCreative identifies an uploaded image/video plus the creative object
// built from it, the chain create_ad consumes.
type AdCreative struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	ImageID string `json:"image_hash,omitempty"`
	VideoID string `json:"video_id,omitempty"`
}

// AdsLibraryFilter carries the public Ads Library search parameters.
type AdsLibraryFilter struct {
	Country   string
	Query     string
	PageID    string
	DateFrom  time.Time
	DateTo    time.Time
	PageToken string
	Limit     int
}

// AdsLibraryEntry is one result row from the public Ads Library search.
type AdsLibraryEntry struct {
	ID           string    `json:"id"`
	PageID       string    `json:"page_id"`
	PageName     string    `json:"page_name"`
	CreativeBody string    `json:"ad_creative_body"`
	StartDate    time.Time `json:"ad_delivery_start_time"`
}

// BreakdownKey enumerates the upstream insights breakdown dimensions
// list_insights_with_breakdown supports.
type BreakdownKey string

const (
	BreakdownAge              BreakdownKey = "age"
	BreakdownGender           BreakdownKey = "gender"
	BreakdownPlacement        BreakdownKey = "publisher_platform"
	BreakdownPlatformPosition BreakdownKey = "platform_position"
	BreakdownDevice           BreakdownKey = "impression_device"
	BreakdownRegion           BreakdownKey = "region"
)

// OmitsActionFields reports whether this breakdown key forces the upstream
// request to drop the action-array fields; the platform rejects the
// combination of platform_position with conversion action fields.
func (k BreakdownKey) OmitsActionFields() bool {
	return k == BreakdownPlatformPosition
}

// Insight is a raw performance snapshot for one entity over one day, as
// returned by the Upstream Client before enrichment.
type Insight struct {
	EntityID    string         `json:"entity_id"`
	EntityType  string         `json:"entity_type"` // campaign | ad_set | ad
	Date        time.Time      `json:"date"`
	Impressions int64          `json:"impressions"`
	Clicks      int64          `json:"clicks"`
	Spend       float64        `json:"spend"`
	Frequency   float64        `json:"frequency"`
	Conversions int64          `json:"conversions"`
	Revenue     float64        `json:"revenue"`
	Actions     []ActionCount  `json:"actions,omitempty"`
	ActionValue []ActionCount  `json:"action_values,omitempty"`

	// BreakdownValue carries the dimension value (e.g. "25-34", "female",
	// "facebook") when this Insight came from a breakdown query. The
	// upstream field name varies by breakdown key, so the Upstream Client
	// populates this explicitly rather than via struct tag.
	BreakdownValue string `json:"-"`
}

// ActionCount is one (action_type, value) pair from the upstream's raw
// actions/action_values arrays, the input to conversions/conversion_value
// enrichment.
type ActionCount struct {
	ActionType string  `json:"action_type"`
	Value      float64 `json:"value"`
}

// DailyBreakdownRow is one row of a per-day report table, raw plus derived
// metrics, the unit that CSV/report materialization renders.
type DailyBreakdownRow struct {
	Date        time.Time `json:"date"`
	EntityID    string    `json:"entity_id"`
	EntityName  string    `json:"entity_name"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Spend       float64   `json:"spend"`
	Conversions int64     `json:"conversions"`
	Revenue     float64   `json:"revenue"`
	CTR         float64   `json:"ctr"`
	CPC         float64   `json:"cpc"`
	CPA         float64   `json:"cpa"`
	ROAS        float64   `json:"roas"`
}

// Enriched wraps a raw upstream value together with the derived metrics the
// Metric Enricher computed for it, so callers never need to recompute ratios
// from raw counters themselves.
type Enriched[T any] struct {
	Raw     T                `json:"raw"`
	Derived map[Metric]float64 `json:"derived"`
}

// Value returns the derived metric, or 0 if it was not computed (e.g. division
// by zero was avoided rather than producing NaN/Inf).
func (e Enriched[T]) Value(m Metric) float64 {
	return e.Derived[m]
}
