package learning

import (
	"math/rand/v2"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// SoftmaxRegression is a single linear layer trained with softmax
// cross-entropy.
type SoftmaxRegression struct {
	numFeatures int
	numClasses  int
	schema      model.Schema
}

func NewSoftmaxRegression(numFeatures int, numClasses int) *SoftmaxRegression {
	return &SoftmaxRegression{
		numFeatures: numFeatures,
		numClasses:  numClasses,
		schema: model.Schema{
			{Name: "linear.weight", Shape: []int{numClasses, numFeatures}},
			{Name: "linear.bias", Shape: []int{numClasses}},
		},
	}
}

func (s *SoftmaxRegression) Name() string {
	return common.ARCHITECTURE_SOFTMAX
}

func (s *SoftmaxRegression) Schema() model.Schema {
	return s.schema
}

func (s *SoftmaxRegression) InitParams(rng *rand.Rand) *model.ParameterStore {
	params := s.schema.Zeros()
	weight, _ := params.Get("linear.weight")
	bias, _ := params.Get("linear.bias")
	initLinear(rng, weight, bias, s.numFeatures)
	return params
}

func (s *SoftmaxRegression) Predict(params *model.ParameterStore, batch model.Dataset) ([]int, float64, error) {
	if err := s.schema.Check(params); err != nil {
		return nil, 0, err
	}
	x, labels, err := batchMatrix(batch, s.numFeatures, s.numClasses)
	if err != nil {
		return nil, 0, err
	}

	logits := linear(x, tensorMatrix(params, "linear.weight"), tensorVector(params, "linear.bias"))
	predictions := argmaxRows(logits)
	loss := softmaxCrossEntropy(logits, labels)

	return predictions, loss, nil
}

func (s *SoftmaxRegression) Gradients(params *model.ParameterStore, batch model.Dataset) (float64, *model.ParameterStore, error) {
	if err := s.schema.Check(params); err != nil {
		return 0, nil, err
	}
	x, labels, err := batchMatrix(batch, s.numFeatures, s.numClasses)
	if err != nil {
		return 0, nil, err
	}

	probs := linear(x, tensorMatrix(params, "linear.weight"), tensorVector(params, "linear.bias"))
	loss := softmaxCrossEntropy(probs, labels)
	outputGradient(probs, labels)

	grads := s.schema.Zeros()
	tensorMatrix(grads, "linear.weight").Mul(probs.T(), x)
	columnSums(tensorVector(grads, "linear.bias"), probs)

	return loss, grads, nil
}
