package aiadapter

import (
	"context"
	"fmt"

	"github.com/ignite/adcontrol/internal/reportcatalog"
)

// FallbackAdapter produces a deterministic, rule-based summary when no AI
// backend is configured, so the analyze task stays usable without Bedrock
// credentials.
type FallbackAdapter struct{}

// NewFallbackAdapter creates a FallbackAdapter.
func NewFallbackAdapter() *FallbackAdapter { return &FallbackAdapter{} }

func (f *FallbackAdapter) Analyze(ctx context.Context, templateName string, rows []reportcatalog.Row) (string, error) {
	count, spend, conversions, revenue := summarize(rows)
	if count == 0 {
		return fmt.Sprintf("%s: no data returned for the selected window.", templateName), nil
	}

	roas := 0.0
	if spend > 0 {
		roas = revenue / spend
	}
	cpa := 0.0
	if conversions > 0 {
		cpa = spend / conversions
	}

	return fmt.Sprintf(
		"%s covers %d rows. Total spend was %.2f against %.0f conversions (cpa %.2f) and %.2f in "+
			"attributed revenue (roas %.2f). Review rows with the highest spend and lowest roas first.",
		templateName, count, spend, conversions, cpa, revenue, roas,
	), nil
}
