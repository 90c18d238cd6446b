package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ignite/adcontrol/internal/domain"
)

// SearchAdsLibrary queries the platform's public Ads Library, the
// transparency endpoint advertisers and researchers use to look up
// currently-running ads by page, country, or keyword. The request goes
// through the same authenticated path as every other call, so it needs the
// configured API token.
func (c *Client) SearchAdsLibrary(ctx context.Context, filter domain.AdsLibraryFilter) ([]domain.AdsLibraryEntry, error) {
	q := url.Values{}
	q.Set("ad_type", "ALL")
	if filter.Country != "" {
		q.Set("ad_reached_countries", filter.Country)
	} else {
		q.Set("ad_reached_countries", "US")
	}
	if filter.Query != "" {
		q.Set("search_terms", filter.Query)
	}
	if filter.PageID != "" {
		q.Set("search_page_ids", filter.PageID)
	}
	if !filter.DateFrom.IsZero() {
		q.Set("ad_delivery_date_min", filter.DateFrom.Format("2006-01-02"))
	}
	if !filter.DateTo.IsZero() {
		q.Set("ad_delivery_date_max", filter.DateTo.Format("2006-01-02"))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if filter.PageToken != "" {
		q.Set("after", filter.PageToken)
	}
	q.Set("fields", "id,page_id,page_name,ad_creative_body,ad_delivery_start_time")

	var out struct {
		Data []domain.AdsLibraryEntry `json:"data"`
	}
	if err := c.do(ctx, "GET", "/ads_archive?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
