package upstream

import (
	"testing"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEnrichComputesRatios(t *testing.T) {
	raw := domain.Insight{
		Impressions: 1000,
		Clicks:      50,
		Spend:       100,
		Conversions: 5,
		Revenue:     500,
	}
	e := Enrich(raw)
	assert.Equal(t, 5.0, e.Value(domain.MetricCTR))
	assert.Equal(t, 2.0, e.Value(domain.MetricCPC))
	assert.Equal(t, 20.0, e.Value(domain.MetricCPA))
	assert.Equal(t, 5.0, e.Value(domain.MetricROAS))
}

func TestEnrichAvoidsDivisionByZero(t *testing.T) {
	e := Enrich(domain.Insight{})
	assert.Equal(t, 0.0, e.Value(domain.MetricCTR))
	assert.Equal(t, 0.0, e.Value(domain.MetricCPC))
	assert.Equal(t, 0.0, e.Value(domain.MetricCPA))
	assert.Equal(t, 0.0, e.Value(domain.MetricROAS))
}
