package performance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogarithmicRegressionRecoversCoefficients(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 10 + 20*math.Log(x+1)
	}

	lr, err := NewLogarithmicRegression(xs, ys)
	require.NoError(t, err)
	require.InDelta(t, 10, lr.a, 1e-9)
	require.InDelta(t, 20, lr.b, 1e-9)
	require.InDelta(t, 10+20*math.Log(11), lr.PredictY(10), 1e-9)
	require.InDelta(t, 10, lr.PredictX(lr.PredictY(10)), 1e-9)
	require.Equal(t, "f(x) = 10.00 + 20.00 * ln(x+1)", lr.PrintFunction())
}

func TestLogarithmicRegressionNeedsTwoPoints(t *testing.T) {
	_, err := NewLogarithmicRegression([]float64{1}, []float64{1})
	require.Error(t, err)
}

func TestPredictRoundForAccuracy(t *testing.T) {
	accuracies := []float64{}
	losses := []float64{}
	for round := 1; round <= 4; round++ {
		accuracies = append(accuracies, 30+20*math.Log(float64(round)+1))
		losses = append(losses, 2-0.5*math.Log(float64(round)+1))
	}

	pp, err := NewPerformancePrediction(accuracies, losses, LogarithmicRegression_PredictionType)
	require.NoError(t, err)

	target := 30 + 20*math.Log(9) - 1e-6
	round, ok := pp.PredictRoundForAccuracy(target)
	require.True(t, ok)
	require.Equal(t, 8, round)
	require.InDelta(t, target, pp.PredictAccuracy(8), 1e-5)
	require.InDelta(t, 2-0.5*math.Log(9), pp.PredictLoss(8), 1e-9)

	_, err = NewPerformancePrediction(accuracies, losses, "linear")
	require.Error(t, err)
}

func TestPredictRoundForFlatCurve(t *testing.T) {
	pp, err := NewPerformancePrediction([]float64{50, 50, 50}, []float64{1, 1, 1}, LogarithmicRegression_PredictionType)
	require.NoError(t, err)

	_, ok := pp.PredictRoundForAccuracy(90)
	require.False(t, ok)
	require.InDelta(t, 1, pp.PredictLoss(10), 1e-9)
}
