package ruleengine

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// minAdjustedBudget floors a budget_decrease automation so it can never
// drive a daily budget to zero.
const minAdjustedBudget = 100

// adjustBudgets enumerates campaignID's ad sets from the live upstream
// snapshot (not the tick's cached Snapshot, which carries campaign-level
// metrics only) and writes each eligible one's new daily budget per §4.4:
// new_daily = max(floor(current_daily * factor), 100), where factor is
// 1±pct/100. Ad sets funded by a lifetime budget are skipped since they have
// no daily_budget to scale.
func (e *Engine) adjustBudgets(ctx context.Context, campaignID string, pct float64, increase bool) error {
	adSets, err := e.upstream.ListAdSets(ctx, campaignID, snapshotWindowDays, "")
	if err != nil {
		return fmt.Errorf("ruleengine: list ad sets: %w", err)
	}

	factor := 1 - pct/100
	if increase {
		factor = 1 + pct/100
	}

	var failures []string
	for _, as := range adSets {
		if as.Raw.HasLifetimeBudget() || as.Raw.DailyBudget <= 0 {
			continue
		}
		newDaily := math.Floor(as.Raw.DailyBudget * factor)
		if newDaily < minAdjustedBudget {
			newDaily = minAdjustedBudget
		}
		if err := e.upstream.AdjustBudget(ctx, as.Raw.ID, newDaily); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", as.Raw.ID, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("ruleengine: %d ad set budget write(s) failed: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}
