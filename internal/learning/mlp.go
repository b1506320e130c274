package learning

import (
	"math/rand/v2"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"gonum.org/v1/gonum/mat"
)

// MLP is a two-layer perceptron: fc1, ReLU, fc2, softmax cross-entropy.
type MLP struct {
	numFeatures int
	hiddenSize  int
	numClasses  int
	schema      model.Schema
}

func NewMLP(numFeatures int, hiddenSize int, numClasses int) *MLP {
	return &MLP{
		numFeatures: numFeatures,
		hiddenSize:  hiddenSize,
		numClasses:  numClasses,
		schema: model.Schema{
			{Name: "fc1.weight", Shape: []int{hiddenSize, numFeatures}},
			{Name: "fc1.bias", Shape: []int{hiddenSize}},
			{Name: "fc2.weight", Shape: []int{numClasses, hiddenSize}},
			{Name: "fc2.bias", Shape: []int{numClasses}},
		},
	}
}

func (m *MLP) Name() string {
	return common.ARCHITECTURE_MLP
}

func (m *MLP) Schema() model.Schema {
	return m.schema
}

func (m *MLP) InitParams(rng *rand.Rand) *model.ParameterStore {
	params := m.schema.Zeros()
	w1, _ := params.Get("fc1.weight")
	b1, _ := params.Get("fc1.bias")
	w2, _ := params.Get("fc2.weight")
	b2, _ := params.Get("fc2.bias")
	initLinear(rng, w1, b1, m.numFeatures)
	initLinear(rng, w2, b2, m.hiddenSize)
	return params
}

type mlpActivations struct {
	x      *mat.Dense
	labels []int
	hidden *mat.Dense
	relu   *mat.Dense
	logits *mat.Dense
}

func (m *MLP) forward(params *model.ParameterStore, batch model.Dataset) (*mlpActivations, error) {
	if err := m.schema.Check(params); err != nil {
		return nil, err
	}
	x, labels, err := batchMatrix(batch, m.numFeatures, m.numClasses)
	if err != nil {
		return nil, err
	}

	hidden := linear(x, tensorMatrix(params, "fc1.weight"), tensorVector(params, "fc1.bias"))
	relu := mat.DenseCopyOf(hidden)
	relu.Apply(func(_, _ int, v float64) float64 {
		return max(v, 0)
	}, relu)
	logits := linear(relu, tensorMatrix(params, "fc2.weight"), tensorVector(params, "fc2.bias"))

	return &mlpActivations{x: x, labels: labels, hidden: hidden, relu: relu, logits: logits}, nil
}

func (m *MLP) Predict(params *model.ParameterStore, batch model.Dataset) ([]int, float64, error) {
	act, err := m.forward(params, batch)
	if err != nil {
		return nil, 0, err
	}

	predictions := argmaxRows(act.logits)
	loss := softmaxCrossEntropy(act.logits, act.labels)

	return predictions, loss, nil
}

func (m *MLP) Gradients(params *model.ParameterStore, batch model.Dataset) (float64, *model.ParameterStore, error) {
	act, err := m.forward(params, batch)
	if err != nil {
		return 0, nil, err
	}

	dLogits := act.logits
	loss := softmaxCrossEntropy(dLogits, act.labels)
	outputGradient(dLogits, act.labels)

	grads := m.schema.Zeros()
	tensorMatrix(grads, "fc2.weight").Mul(dLogits.T(), act.relu)
	columnSums(tensorVector(grads, "fc2.bias"), dLogits)

	rows, _ := act.x.Dims()
	dHidden := mat.NewDense(rows, m.hiddenSize, nil)
	dHidden.Mul(dLogits, tensorMatrix(params, "fc2.weight"))
	dHidden.Apply(func(i, j int, v float64) float64 {
		if act.hidden.At(i, j) <= 0 {
			return 0
		}
		return v
	}, dHidden)

	tensorMatrix(grads, "fc1.weight").Mul(dHidden.T(), act.x)
	columnSums(tensorVector(grads, "fc1.bias"), dHidden)

	return loss, grads, nil
}
