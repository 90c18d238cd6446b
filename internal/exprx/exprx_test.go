package exprx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalArithmetic(t *testing.T) {
	val, err := Eval("clicks / impressions * 100", Vars{"clicks": 10, "impressions": 200})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, val, 0.0001)
}

func TestEvalPrecedenceAndParens(t *testing.T) {
	val, err := Eval("(spend + 10) * 2 - 5", Vars{"spend": 5})
	require.NoError(t, err)
	assert.Equal(t, 25.0, val)
}

func TestEvalFunction(t *testing.T) {
	val, err := Eval("sqrt(conversions)", Vars{"conversions": 9})
	require.NoError(t, err)
	assert.Equal(t, 3.0, val)
}

func TestEvalDivisionByZeroIsZeroNotNaN(t *testing.T) {
	val, err := Eval("revenue / spend", Vars{"revenue": 100, "spend": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, val)
}

func TestEvalUnknownVariable(t *testing.T) {
	_, err := Eval("bogus_metric * 2", Vars{})
	assert.Error(t, err)
}

func TestEvalUnknownFunction(t *testing.T) {
	_, err := Eval("exec(1)", Vars{})
	assert.Error(t, err)
}
