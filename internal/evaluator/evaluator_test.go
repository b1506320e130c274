package evaluator

import (
	"math/rand/v2"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCountsCorrectPredictions(t *testing.T) {
	arch := learning.NewSoftmaxRegression(2, 2)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	// Weights that predict class 0 when x0 > x1 and class 1 otherwise.
	weight, _ := params.Get("linear.weight")
	copy(weight.Data, []float64{5, -5, -5, 5})
	bias, _ := params.Get("linear.bias")
	copy(bias.Data, []float64{0, 0})

	heldOut := model.Dataset{
		{Features: []float64{1, 0}, Label: 0},
		{Features: []float64{0, 1}, Label: 1},
		{Features: []float64{1, 0}, Label: 1},
		{Features: []float64{0, 1}, Label: 1},
		{Features: []float64{2, 0}, Label: 0},
	}

	evaluator, err := NewEvaluator(arch, 2)
	require.NoError(t, err)
	before := params.Clone()

	result, err := evaluator.Evaluate(params, heldOut)
	require.NoError(t, err)
	require.InDelta(t, 80.0, result.AccuracyPercent, 1e-9)
	require.True(t, common.IsFinite(result.MeanLoss))
	require.Greater(t, result.MeanLoss, 0.0)
	require.GreaterOrEqual(t, result.MeanInferenceTime.Nanoseconds(), int64(0))
	require.True(t, before.Equal(params))
}

func TestEvaluateEmptyHeldOut(t *testing.T) {
	arch := learning.NewSoftmaxRegression(2, 2)
	evaluator, err := NewEvaluator(arch, 8)
	require.NoError(t, err)

	_, err = evaluator.Evaluate(arch.InitParams(rand.New(rand.NewPCG(1, 1))), model.Dataset{})
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNewEvaluatorRejectsBatchSize(t *testing.T) {
	_, err := NewEvaluator(learning.NewSoftmaxRegression(2, 2), 0)
	require.ErrorIs(t, err, common.ErrConfiguration)
}
