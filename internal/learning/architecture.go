package learning

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Architecture is a pluggable model strategy. Implementations never mutate
// the parameter stores they are given.
type Architecture interface {
	Name() string
	Schema() model.Schema
	InitParams(rng *rand.Rand) *model.ParameterStore
	// Predict returns the argmax class per sample and the mean loss of the batch.
	Predict(params *model.ParameterStore, batch model.Dataset) ([]int, float64, error)
	// Gradients returns the mean loss of the batch and its gradient with
	// respect to every parameter.
	Gradients(params *model.ParameterStore, batch model.Dataset) (float64, *model.ParameterStore, error)
}

type ArchitectureConfig struct {
	Name        string `yaml:"name" json:"name"`
	HiddenSize  int    `yaml:"hiddenSize" json:"hiddenSize"`
	NumFeatures int    `yaml:"-" json:"-"`
	NumClasses  int    `yaml:"-" json:"-"`
}

func NewArchitecture(cfg ArchitectureConfig) (Architecture, error) {
	if cfg.NumFeatures < 1 || cfg.NumClasses < 1 {
		return nil, fmt.Errorf("%w: architecture needs positive feature and class counts, got %d and %d",
			common.ErrConfiguration, cfg.NumFeatures, cfg.NumClasses)
	}

	switch cfg.Name {
	case common.ARCHITECTURE_SOFTMAX:
		return NewSoftmaxRegression(cfg.NumFeatures, cfg.NumClasses), nil
	case common.ARCHITECTURE_MLP:
		if cfg.HiddenSize < 1 {
			return nil, fmt.Errorf("%w: mlp hidden size must be positive, got %d", common.ErrConfiguration, cfg.HiddenSize)
		}
		return NewMLP(cfg.NumFeatures, cfg.HiddenSize, cfg.NumClasses), nil
	default:
		return nil, fmt.Errorf("%w: unknown architecture %q", common.ErrConfiguration, cfg.Name)
	}
}

// initLinear fills a fully connected layer uniformly in +-1/sqrt(fanIn).
func initLinear(rng *rand.Rand, weight *model.Tensor, bias *model.Tensor, fanIn int) {
	bound := 1 / math.Sqrt(float64(fanIn))
	for i := range weight.Data {
		weight.Data[i] = (rng.Float64()*2 - 1) * bound
	}
	for i := range bias.Data {
		bias.Data[i] = (rng.Float64()*2 - 1) * bound
	}
}

func tensorMatrix(params *model.ParameterStore, name string) *mat.Dense {
	t, _ := params.Get(name)
	return mat.NewDense(t.Shape[0], t.Shape[1], t.Data)
}

func tensorVector(params *model.ParameterStore, name string) []float64 {
	t, _ := params.Get(name)
	return t.Data
}

func batchMatrix(batch model.Dataset, numFeatures int, numClasses int) (*mat.Dense, []int, error) {
	if len(batch) == 0 {
		return nil, nil, fmt.Errorf("%w: empty batch", common.ErrEmptyShard)
	}

	x := mat.NewDense(len(batch), numFeatures, nil)
	labels := make([]int, len(batch))
	for i, sample := range batch {
		if len(sample.Features) != numFeatures {
			return nil, nil, fmt.Errorf("%w: sample has %d features, model expects %d",
				common.ErrConfiguration, len(sample.Features), numFeatures)
		}
		if sample.Label < 0 || sample.Label >= numClasses {
			return nil, nil, fmt.Errorf("%w: label %d outside [0, %d)", common.ErrConfiguration, sample.Label, numClasses)
		}
		x.SetRow(i, sample.Features)
		labels[i] = sample.Label
	}
	return x, labels, nil
}

// linear computes in * weight^T + bias.
func linear(in mat.Matrix, weight *mat.Dense, bias []float64) *mat.Dense {
	rows, _ := in.Dims()
	outSize, _ := weight.Dims()
	out := mat.NewDense(rows, outSize, nil)
	out.Mul(in, weight.T())
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), bias)
	}
	return out
}

// softmaxCrossEntropy turns logits into class probabilities in place and
// returns the mean negative log-likelihood of labels.
func softmaxCrossEntropy(logits *mat.Dense, labels []int) float64 {
	rows, _ := logits.Dims()
	var total float64
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		logSumExp := floats.LogSumExp(row)
		total += logSumExp - row[labels[i]]
		for j := range row {
			row[j] = math.Exp(row[j] - logSumExp)
		}
	}
	return total / float64(rows)
}

// outputGradient converts probabilities into dLoss/dLogits = (P - Y) / n in place.
func outputGradient(probs *mat.Dense, labels []int) {
	rows, _ := probs.Dims()
	for i := 0; i < rows; i++ {
		row := probs.RawRowView(i)
		row[labels[i]] -= 1
		floats.Scale(1/float64(rows), row)
	}
}

func argmaxRows(m *mat.Dense) []int {
	rows, _ := m.Dims()
	predictions := make([]int, rows)
	for i := 0; i < rows; i++ {
		predictions[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return predictions
}

// columnSums writes the per-column sums of m into dst.
func columnSums(dst []float64, m *mat.Dense) {
	rows, _ := m.Dims()
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < rows; i++ {
		floats.Add(dst, m.RawRowView(i))
	}
}
