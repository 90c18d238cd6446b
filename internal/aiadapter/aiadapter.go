// Package aiadapter turns a materialized report's rows into a short prose
// analysis. A Bedrock-backed adapter is used when AWS credentials and a
// model id are configured; otherwise a deterministic rule-based fallback
// keeps the analyze task usable without any AI dependency.
package aiadapter

import (
	"context"
	"fmt"

	"github.com/ignite/adcontrol/internal/reportcatalog"
)

// Error is the AI adapter's error type: every failure names which stage
// (configuration, request, response) produced it.
type Error struct {
	Stage  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("aiadapter: %s: %s", e.Stage, e.Reason)
}

// Adapter turns one template's rows into a short analysis paragraph.
type Adapter interface {
	Analyze(ctx context.Context, templateName string, rows []reportcatalog.Row) (string, error)
}

// summarize computes the shared numeric rollups both adapters report on:
// row count and, when present, totals for spend/conversions/revenue.
func summarize(rows []reportcatalog.Row) (count int, spend, conversions, revenue float64) {
	count = len(rows)
	for _, r := range rows {
		spend += parseFloat(r["spend"])
		conversions += parseFloat(r["conversions"])
		revenue += parseFloat(r["revenue"])
	}
	return
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}
