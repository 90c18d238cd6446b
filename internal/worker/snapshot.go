package worker

import (
	"context"

	"github.com/ignite/adcontrol/internal/ruleengine"
	"github.com/ignite/adcontrol/internal/upstream"
)

// buildSnapshot delegates to ruleengine.BuildSnapshot so the rule-check tick
// and the API's manual evaluation handlers share one enrichment path.
func buildSnapshot(ctx context.Context, up *upstream.Client, account string) (ruleengine.Snapshot, error) {
	return ruleengine.BuildSnapshot(ctx, up, account)
}
