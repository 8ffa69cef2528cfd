package finance

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalCostAppliesEveryDeduction(t *testing.T) {
	cost := FinalCost(CostInputs{
		PaidValue:       1000,
		Shipping:        20,
		AdvanceDiscount: 30,
		Cashback:        15,
		Points:          1400,
		Thousand:        14,
	})
	assert.Equal(t, 875.0, cost)
}

func TestFinalCostZeroThousandIgnoresPoints(t *testing.T) {
	cost := FinalCost(CostInputs{PaidValue: 500, Points: 200, Thousand: 0})
	assert.Equal(t, 500.0, cost)
	assert.False(t, math.IsNaN(cost))
	assert.True(t, PointsValue(200, 0).IsZero())
}

func TestFinalCostKeepsNegativeResult(t *testing.T) {
	cost := FinalCost(CostInputs{PaidValue: 100, Cashback: 80, AdvanceDiscount: 40})
	assert.Equal(t, -20.0, cost)
}

func TestFinalCostIsDeterministic(t *testing.T) {
	in := CostInputs{PaidValue: 3499.9, Shipping: 12.35, Cashback: 174.99, Points: 3500, Thousand: 17.5}
	first := FinalCost(in)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, FinalCost(in))
	}
	assert.Equal(t, 3137.26, first)
}

func TestProfitIsNotClamped(t *testing.T) {
	assert.Equal(t, 325.0, Profit(1200, 875))
	assert.Equal(t, -75.0, Profit(800, 875))
}

func TestValidateRejectsNonFiniteAndNegative(t *testing.T) {
	require.NoError(t, CostInputs{PaidValue: 10}.Validate())
	assert.Error(t, CostInputs{PaidValue: math.NaN()}.Validate())
	assert.Error(t, CostInputs{PaidValue: 10, Shipping: math.Inf(1)}.Validate())
	assert.Error(t, CostInputs{PaidValue: 10, Cashback: -1}.Validate())
	assert.Error(t, CostInputs{PaidValue: 10, Points: -5}.Validate())
}

func TestCostInputsRejectSubCentAmounts(t *testing.T) {
	assert.Error(t, CostInputs{PaidValue: 10.005}.Validate())
	assert.Error(t, CostInputs{PaidValue: 10, Shipping: 10.005}.Validate())
	assert.Error(t, CostInputs{PaidValue: 10, Thousand: 17.12345}.Validate())
	require.NoError(t, CostInputs{PaidValue: 10.01, Shipping: 0.1, Thousand: 17.1234}.Validate())

	assert.Error(t, ValidateAmount("sold_value", 1200.001))
	require.NoError(t, ValidateRate("points_per_real", 1.5))
}

func earned(t *testing.T, paid float64, rate float64) int64 {
	t.Helper()
	points, err := EarnedPoints(paid, rate)
	require.NoError(t, err)
	return points
}

func TestEarnedPointsFloorsFraction(t *testing.T) {
	assert.Equal(t, int64(1049), earned(t, 1049.99, 1))
	assert.Equal(t, int64(0), earned(t, 1000, 0))
	assert.Equal(t, int64(15000), earned(t, 3000, 5))
}

func TestEarnedPointsRejectsOverflow(t *testing.T) {
	_, err := EarnedPoints(1e15, 1e6)
	assert.Error(t, err)

	points, err := EarnedPoints(math.MaxInt64/10, 1)
	require.NoError(t, err)
	assert.Positive(t, points)
}

func TestPercentAndMeanGuardZero(t *testing.T) {
	assert.True(t, Percent(decimal.NewFromInt(5), decimal.Zero).IsZero())
	assert.True(t, Mean(decimal.NewFromInt(5), 0).IsZero())
	assert.Equal(t, "25", Percent(decimal.NewFromInt(25), decimal.NewFromInt(100)).String())
}

func TestMonthLabel(t *testing.T) {
	at := time.Date(2026, time.October, 17, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "out/2026", MonthLabel(at, "pt-BR"))
	assert.Equal(t, "Oct/2026", MonthLabel(at, "en"))
	assert.Equal(t, "out/2026", MonthLabel(at, "xx"))
}
