package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/cache"
	"github.com/ignite/adcontrol/internal/domain"
)

func window(days int) (time.Time, time.Time) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	return from, to
}

// FetchInsights retrieves raw performance data for one entity across a date
// range, which the Metric Enricher then turns into domain.Enriched rows.
func (c *Client) FetchInsights(ctx context.Context, entityID, entityType string, from, to time.Time) ([]domain.Insight, error) {
	var out struct {
		Data []domain.Insight `json:"data"`
	}
	path := fmt.Sprintf("/%s/insights?since=%s&until=%s", entityID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Data {
		out.Data[i].EntityID = entityID
		out.Data[i].EntityType = entityType
	}
	return out.Data, nil
}

// ListCampaigns returns every campaign in account, each with its insights
// for the trailing `days` window already attached. Per §4.1 the client
// pauses at least 500ms between each per-campaign insights call to stay
// well under the platform's burst limits.
func (c *Client) ListCampaigns(ctx context.Context, days int, account string) ([]domain.Enriched[domain.Campaign], error) {
	acct := c.resolveAccount(account)
	key := c.cache.Key("campaigns", acct, fmt.Sprint(days))
	return cache.Wrap(ctx, c.cache, key, func() ([]domain.Enriched[domain.Campaign], error) {
		var list struct {
			Data []domain.Campaign `json:"data"`
		}
		if err := c.do(ctx, "GET", fmt.Sprintf("/%s/campaigns?fields=id,name,status,daily_budget,objective", acct), nil, &list); err != nil {
			return nil, err
		}

		from, to := window(days)
		out := make([]domain.Enriched[domain.Campaign], 0, len(list.Data))
		for i, campaign := range list.Data {
			insights, err := c.FetchInsights(ctx, campaign.ID, "campaign", from, to)
			if err != nil {
				return nil, err
			}
			derived := map[domain.Metric]float64{}
			if len(insights) > 0 {
				derived = Enrich(aggregate(insights)).Derived
			}
			out = append(out, domain.Enriched[domain.Campaign]{Raw: campaign, Derived: derived})

			if i < len(list.Data)-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}
			}
		}
		return out, nil
	})
}

// aggregate sums a set of daily Insight rows for the same entity into one
// window-level Insight, the shape get_account_summary and ListCampaigns
// enrichment need.
func aggregate(rows []domain.Insight) domain.Insight {
	var out domain.Insight
	if len(rows) > 0 {
		out.EntityID = rows[0].EntityID
		out.EntityType = rows[0].EntityType
	}
	for _, r := range rows {
		out.Impressions += r.Impressions
		out.Clicks += r.Clicks
		out.Spend += r.Spend
		out.Conversions += r.Conversions
		out.Revenue += r.Revenue
		out.Frequency += r.Frequency
		out.Actions = append(out.Actions, r.Actions...)
		out.ActionValue = append(out.ActionValue, r.ActionValue...)
	}
	return out
}

// GetAccountSummary returns a single aggregate record for the account over
// the window.
func (c *Client) GetAccountSummary(ctx context.Context, days int, account string) (domain.AccountSummary, error) {
	acct := c.resolveAccount(account)
	from, to := window(days)
	insights, err := c.FetchInsights(ctx, acct, "account", from, to)
	if err != nil {
		return domain.AccountSummary{}, err
	}
	raw := aggregate(insights)
	enriched := Enrich(raw)
	return domain.AccountSummary{
		AccountID:   acct,
		Impressions: raw.Impressions,
		Clicks:      raw.Clicks,
		Spend:       raw.Spend,
		Conversions: int64(enriched.Value(domain.MetricConversions)),
		Revenue:     enriched.Value(domain.MetricRevenue),
	}, nil
}

// GetDailyBreakdown returns one enriched row per day in the window.
func (c *Client) GetDailyBreakdown(ctx context.Context, days int, account string) ([]domain.DailyBreakdownRow, error) {
	acct := c.resolveAccount(account)
	from, to := window(days)
	insights, err := c.FetchInsights(ctx, acct, "account", from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyBreakdownRow, 0, len(insights))
	for _, ins := range insights {
		out = append(out, ToBreakdownRow(acct, Enrich(ins)))
	}
	return out, nil
}

// ListAdSets lists ad sets under campaign (or every ad set in account when
// campaign is empty), each enriched with its insights window. Deliberately
// not cached: the automation actuator reads daily_budget from here
// immediately before computing a budget-change decision, and a
// stale cached budget would compound a percentage adjustment against the
// wrong baseline.
func (c *Client) ListAdSets(ctx context.Context, campaign string, days int, account string) ([]domain.Enriched[domain.AdSet], error) {
	acct := c.resolveAccount(account)
	scope := acct
	if campaign != "" {
		scope = campaign
	}
	var list struct {
		Data []domain.AdSet `json:"data"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/%s/adsets?fields=id,campaign_id,name,status,bid_amount,daily_budget,lifetime_budget", scope), nil, &list); err != nil {
		return nil, err
	}
	from, to := window(days)
	out := make([]domain.Enriched[domain.AdSet], 0, len(list.Data))
	for _, as := range list.Data {
		insights, err := c.FetchInsights(ctx, as.ID, "ad_set", from, to)
		if err != nil {
			return nil, err
		}
		derived := map[domain.Metric]float64{}
		if len(insights) > 0 {
			derived = Enrich(aggregate(insights)).Derived
		}
		out = append(out, domain.Enriched[domain.AdSet]{Raw: as, Derived: derived})
	}
	return out, nil
}

// ListAds lists ads under campaign (or every ad in account when campaign is
// empty), each enriched with its insights window. Cached like ListCampaigns:
// ad-level listings only feed reporting and the UI, never an actuation
// decision, so a short-lived stale read is harmless.
func (c *Client) ListAds(ctx context.Context, campaign string, days int, account string) ([]domain.Enriched[domain.Ad], error) {
	acct := c.resolveAccount(account)
	scope := acct
	if campaign != "" {
		scope = campaign
	}
	key := c.cache.Key("ads", scope, fmt.Sprint(days))
	return cache.Wrap(ctx, c.cache, key, func() ([]domain.Enriched[domain.Ad], error) {
		var list struct {
			Data []domain.Ad `json:"data"`
		}
		if err := c.do(ctx, "GET", fmt.Sprintf("/%s/ads?fields=id,adset_id,name,status", scope), nil, &list); err != nil {
			return nil, err
		}
		from, to := window(days)
		out := make([]domain.Enriched[domain.Ad], 0, len(list.Data))
		for _, ad := range list.Data {
			insights, err := c.FetchInsights(ctx, ad.ID, "ad", from, to)
			if err != nil {
				return nil, err
			}
			derived := map[domain.Metric]float64{}
			if len(insights) > 0 {
				derived = Enrich(aggregate(insights)).Derived
			}
			out = append(out, domain.Enriched[domain.Ad]{Raw: ad, Derived: derived})
		}
		return out, nil
	})
}

// ListInsightsWithBreakdown fetches account-level insights sliced by a
// breakdown dimension (age, gender, placement, ...). When breakdown is
// platform_position the action-array fields are omitted from the field list
// per §4.1 — the upstream API rejects that combination.
func (c *Client) ListInsightsWithBreakdown(ctx context.Context, account string, days int, breakdown domain.BreakdownKey, increment string) ([]domain.Insight, error) {
	acct := c.resolveAccount(account)
	from, to := window(days)

	fields := "impressions,clicks,spend,frequency,actions,action_values"
	if breakdown.OmitsActionFields() {
		fields = "impressions,clicks,spend,frequency"
	}
	path := fmt.Sprintf("/%s/insights?since=%s&until=%s&breakdowns=%s&fields=%s",
		acct, from.Format("2006-01-02"), to.Format("2006-01-02"), breakdown, fields)
	if increment != "" {
		path += "&time_increment=" + increment
	}

	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}

	result := make([]domain.Insight, 0, len(out.Data))
	for _, raw := range out.Data {
		var ins domain.Insight
		if err := json.Unmarshal(raw, &ins); err != nil {
			return nil, apperr.Internal("upstream: unmarshal breakdown row", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err == nil {
			if v, ok := fields[string(breakdown)]; ok {
				ins.BreakdownValue = fmt.Sprint(v)
			}
		}
		result = append(result, ins)
	}
	return result, nil
}

// ListAdAccounts returns the ad accounts visible to the configured token.
func (c *Client) ListAdAccounts(ctx context.Context) ([]domain.AdAccount, error) {
	var out struct {
		Data []domain.AdAccount `json:"data"`
	}
	if err := c.do(ctx, "GET", "/me/adaccounts?fields=id,name,currency,timezone_name", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
