package evaluator

import (
	"fmt"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

type Result struct {
	AccuracyPercent   float64
	MeanLoss          float64
	MeanInferenceTime time.Duration
}

// Evaluator scores a global model on a held-out dataset in fixed-size
// batches. It is stateless apart from its configuration.
type Evaluator struct {
	arch      learning.Architecture
	batchSize int
}

func NewEvaluator(arch learning.Architecture, batchSize int) (*Evaluator, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: evaluation batch size must be positive, got %d", common.ErrConfiguration, batchSize)
	}

	return &Evaluator{arch: arch, batchSize: batchSize}, nil
}

// Evaluate reports accuracy in percent, mean batch loss and mean forward
// pass time per batch. Only the forward pass is timed.
func (e *Evaluator) Evaluate(params *model.ParameterStore, heldOut model.Dataset) (Result, error) {
	if len(heldOut) == 0 {
		return Result{}, fmt.Errorf("%w: held-out dataset is empty", common.ErrConfiguration)
	}

	correct := 0
	numBatches := 0
	var totalLoss float64
	var inferenceTime time.Duration
	for start := 0; start < len(heldOut); start += e.batchSize {
		batch := heldOut[start:min(start+e.batchSize, len(heldOut))]

		begin := time.Now()
		predictions, loss, err := e.arch.Predict(params, batch)
		inferenceTime += time.Since(begin)
		if err != nil {
			return Result{}, err
		}

		for i, predicted := range predictions {
			if predicted == batch[i].Label {
				correct++
			}
		}
		totalLoss += loss
		numBatches++
	}

	return Result{
		AccuracyPercent:   100 * float64(correct) / float64(len(heldOut)),
		MeanLoss:          totalLoss / float64(numBatches),
		MeanInferenceTime: inferenceTime / time.Duration(numBatches),
	}, nil
}
