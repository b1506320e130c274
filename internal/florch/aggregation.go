package florch

import (
	"fmt"
	"math"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// Aggregate computes the FedAvg combination sum_i weights[i]*updates[i] for
// every parameter of global. global only provides the schema and is not
// modified. A nil weights slice means uniform weights. All failures wrap
// common.ErrAggregation and nothing is returned on failure.
func Aggregate(global *model.ParameterStore, updates []*model.ParameterStore, weights []float64) (*model.ParameterStore, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no updates to aggregate", common.ErrAggregation)
	}
	if weights == nil {
		weights = UniformWeights(len(updates))
	}
	if len(weights) != len(updates) {
		return nil, fmt.Errorf("%w: %d updates but %d weights", common.ErrAggregation, len(updates), len(weights))
	}

	var sum float64
	for i, w := range weights {
		if !common.IsFinite(w) || w < 0 {
			return nil, fmt.Errorf("%w: weight %d is %v", common.ErrAggregation, i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > common.WEIGHT_SUM_TOLERANCE {
		return nil, fmt.Errorf("%w: weights sum to %v, expected 1", common.ErrAggregation, sum)
	}

	for i, update := range updates {
		if err := global.CompatibleWith(update); err != nil {
			return nil, fmt.Errorf("%w: update %d: %w", common.ErrAggregation, i, err)
		}
	}

	aggregated := global.ZerosLike()
	for i, update := range updates {
		if err := aggregated.AddScaled(weights[i], update); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrAggregation, err)
		}
	}
	if !aggregated.AllFinite() {
		return nil, fmt.Errorf("%w: aggregated parameters are not finite", common.ErrAggregation)
	}

	return aggregated, nil
}

// UniformWeights returns k weights of 1/k.
func UniformWeights(k int) []float64 {
	weights := make([]float64, k)
	for i := range weights {
		weights[i] = 1 / float64(k)
	}
	return weights
}

// SampleWeights weights every update by its share of the total sample count.
func SampleWeights(numSamples []int) ([]float64, error) {
	raw := make([]float64, len(numSamples))
	for i, n := range numSamples {
		raw[i] = float64(n)
	}
	return NormalizeWeights(raw)
}

// NormalizeWeights scales non-negative weights to sum to one.
func NormalizeWeights(weights []float64) ([]float64, error) {
	var sum float64
	for i, w := range weights {
		if !common.IsFinite(w) || w < 0 {
			return nil, fmt.Errorf("%w: weight %d is %v", common.ErrAggregation, i, w)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: weights sum to %v", common.ErrAggregation, sum)
	}

	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized, nil
}
