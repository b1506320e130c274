package performance

import (
	"fmt"
	"math"
)

const LogarithmicRegression_PredictionType = "log-reg"

// curves flatter than this are treated as never reaching a new target
const minSlope = 1e-9

// PerformancePrediction extrapolates the accuracy and loss curves of a run.
// Round numbers are 1-based: the first entry of the history is round 1.
type PerformancePrediction struct {
	regressionFunctionAccuracies Regression
	regressionFunctionLosses     Regression
}

func NewPerformancePrediction(accuracies []float64, losses []float64, predictionType string) (*PerformancePrediction, error) {
	if predictionType != LogarithmicRegression_PredictionType {
		return nil, fmt.Errorf("unknown prediction type %q", predictionType)
	}

	accuracyFit, err := NewLogarithmicRegression(prepareXAndY(accuracies))
	if err != nil {
		return nil, fmt.Errorf("accuracy fit: %w", err)
	}
	lossFit, err := NewLogarithmicRegression(prepareXAndY(losses))
	if err != nil {
		return nil, fmt.Errorf("loss fit: %w", err)
	}

	return &PerformancePrediction{
		regressionFunctionAccuracies: accuracyFit,
		regressionFunctionLosses:     lossFit,
	}, nil
}

func (pp *PerformancePrediction) PredictAccuracy(round int) float64 {
	return pp.regressionFunctionAccuracies.PredictY(float64(round))
}

func (pp *PerformancePrediction) PredictLoss(round int) float64 {
	return pp.regressionFunctionLosses.PredictY(float64(round))
}

// PredictRoundForAccuracy returns the first round at which the fitted curve
// reaches accuracy. ok is false when the curve never gets there.
func (pp *PerformancePrediction) PredictRoundForAccuracy(accuracy float64) (int, bool) {
	if pp.regressionFunctionAccuracies.Slope() <= minSlope {
		return 0, false
	}
	return toRound(pp.regressionFunctionAccuracies.PredictX(accuracy))
}

func (pp *PerformancePrediction) PrintPrediction() string {
	return pp.regressionFunctionAccuracies.PrintFunction()
}

func toRound(x float64) (int, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x > math.MaxInt32 {
		return 0, false
	}
	return int(math.Max(1, math.Ceil(x))), true
}

func prepareXAndY(values []float64) ([]float64, []float64) {
	xs := make([]float64, len(values))
	ys := make([]float64, len(values))

	for i, value := range values {
		xs[i] = float64(i + 1)
		ys[i] = value
	}

	return xs, ys
}
