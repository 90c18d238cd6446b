package upstream

import (
	"context"
	"fmt"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
)

// SetCampaignStatus mutates a campaign's lifecycle status.
func (c *Client) SetCampaignStatus(ctx context.Context, campaignID string, status domain.CampaignStatus) error {
	if status != domain.CampaignActive && status != domain.CampaignPaused && status != domain.CampaignArchived {
		return apperr.Validation(fmt.Sprintf("upstream: invalid campaign status %q", status))
	}
	return c.do(ctx, "POST", "/"+campaignID, map[string]string{"status": upstreamStatus(status)}, nil)
}

// upstreamStatus maps the domain's lowercase status to the upstream API's
// uppercase enum (ACTIVE, PAUSED, ARCHIVED).
func upstreamStatus(s domain.CampaignStatus) string {
	switch s {
	case domain.CampaignActive:
		return "ACTIVE"
	case domain.CampaignPaused:
		return "PAUSED"
	case domain.CampaignArchived:
		return "ARCHIVED"
	default:
		return "PAUSED"
	}
}

// UpdateAdSetBudget updates an ad set's daily and/or lifetime budget in
// minor-currency units. At least one of daily/lifetime must be non-zero.
func (c *Client) UpdateAdSetBudget(ctx context.Context, adSetID string, daily, lifetime float64) error {
	if daily == 0 && lifetime == 0 {
		return apperr.Validation("upstream: update_adset_budget requires daily or lifetime")
	}
	body := map[string]float64{}
	if daily != 0 {
		body["daily_budget"] = daily
	}
	if lifetime != 0 {
		body["lifetime_budget"] = lifetime
	}
	return c.do(ctx, "POST", "/"+adSetID, body, nil)
}

// PauseCampaign is a convenience wrapper over SetCampaignStatus(PAUSED), the
// action domain.ActionPause performs.
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) error {
	return c.SetCampaignStatus(ctx, campaignID, domain.CampaignPaused)
}

// ResumeCampaign activates a previously paused campaign, the action
// domain.ActionResume performs.
func (c *Client) ResumeCampaign(ctx context.Context, campaignID string) error {
	return c.SetCampaignStatus(ctx, campaignID, domain.CampaignActive)
}

// AdjustBudget updates one ad set's daily budget directly; callers resolve
// the campaign's ad sets and compute the new value before calling this (see
// ruleengine.Engine.adjustBudgets, which backs domain.ActionBudgetDecrease
// and domain.ActionBudgetIncrease).
func (c *Client) AdjustBudget(ctx context.Context, adSetID string, dailyBudget float64) error {
	return c.UpdateAdSetBudget(ctx, adSetID, dailyBudget, 0)
}

// InvalidateAccountCache purges cached campaign and ad listings for account
// (and, when known, the specific campaign). ruleengine.Engine calls this
// after a successful automation action so the next rule-check tick or API
// read sees the mutation immediately instead of waiting out the cache TTL.
func (c *Client) InvalidateAccountCache(ctx context.Context, account, campaignID string) {
	acct := c.resolveAccount(account)
	c.cache.InvalidatePrefix(ctx, "campaigns", acct)
	c.cache.InvalidatePrefix(ctx, "ads", acct)
	if campaignID != "" {
		c.cache.InvalidatePrefix(ctx, "ads", campaignID)
	}
}

// CreateCampaign creates a new campaign in account.
func (c *Client) CreateCampaign(ctx context.Context, account, name, objective string, status domain.CampaignStatus) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"name": name, "objective": objective, "status": upstreamStatus(status)}
	if err := c.do(ctx, "POST", "/"+c.resolveAccount(account)+"/campaigns", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateAdSetParams carries the fields required to create an ad set.
type CreateAdSetParams struct {
	CampaignID     string
	Name           string
	DailyBudget    float64
	LifetimeBudget float64
	BidAmount      float64
	Status         domain.CampaignStatus
}

// CreateAdSet creates a new ad set under a campaign.
func (c *Client) CreateAdSet(ctx context.Context, account string, p CreateAdSetParams) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"campaign_id": p.CampaignID,
		"name":        p.Name,
		"status":      upstreamStatus(p.Status),
	}
	if p.DailyBudget != 0 {
		body["daily_budget"] = p.DailyBudget
	}
	if p.LifetimeBudget != 0 {
		body["lifetime_budget"] = p.LifetimeBudget
	}
	if p.BidAmount != 0 {
		body["bid_amount"] = p.BidAmount
	}
	if err := c.do(ctx, "POST", "/"+c.resolveAccount(account)+"/adsets", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UploadImage uploads a creative image by URL and returns its content hash,
// a 60s+ operation so it uses the longer media-upload timeout.
func (c *Client) UploadImage(ctx context.Context, account, url string) (string, error) {
	var out struct {
		Hash string `json:"hash"`
	}
	body := map[string]string{"url": url}
	if err := c.doTimeout(ctx, "POST", "/"+c.resolveAccount(account)+"/adimages", body, &out, c.uploadTO); err != nil {
		return "", err
	}
	return out.Hash, nil
}

// UploadVideo uploads a creative video by URL and returns its video id.
func (c *Client) UploadVideo(ctx context.Context, account, url, title string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"file_url": url}
	if title != "" {
		body["title"] = title
	}
	if err := c.doTimeout(ctx, "POST", "/"+c.resolveAccount(account)+"/advideos", body, &out, c.uploadTO); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateCreativeParams carries the fields required to build an ad creative
// from a previously uploaded image or video.
type CreateCreativeParams struct {
	Name       string
	ImageHash  string
	VideoID    string
	PageID     string
	LinkURL    string
	BodyText   string
	HeadlineText string
}

// CreateCreative builds an ad creative from an uploaded image or video.
func (c *Client) CreateCreative(ctx context.Context, account string, p CreateCreativeParams) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	spec := map[string]any{
		"page_id": p.PageID,
		"link_data": map[string]string{
			"link":    p.LinkURL,
			"message": p.BodyText,
			"name":    p.HeadlineText,
		},
	}
	if p.ImageHash != "" {
		spec["link_data"].(map[string]string)["image_hash"] = p.ImageHash
	}
	if p.VideoID != "" {
		spec["video_data"] = map[string]string{"video_id": p.VideoID}
	}
	body := map[string]any{"name": p.Name, "object_story_spec": spec}
	if err := c.do(ctx, "POST", "/"+c.resolveAccount(account)+"/adcreatives", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateAd creates an ad from a creative under an ad set.
func (c *Client) CreateAd(ctx context.Context, account, adSetID, creativeID, name string, status domain.CampaignStatus) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":     name,
		"adset_id": adSetID,
		"status":   upstreamStatus(status),
		"creative": map[string]string{"creative_id": creativeID},
	}
	if err := c.do(ctx, "POST", "/"+c.resolveAccount(account)+"/ads", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
