package learning

import (
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// Optimizer applies one update step to params in place.
type Optimizer interface {
	Step(params *model.ParameterStore, grads *model.ParameterStore, learningRate float64) error
}

// OptimizerFactory returns a fresh optimizer so that optimizer state never
// outlives one local training call.
type OptimizerFactory func() Optimizer

// SGD is stochastic gradient descent with optional classical momentum.
type SGD struct {
	momentum float64
	velocity *model.ParameterStore
}

func NewSGD(momentum float64) *SGD {
	return &SGD{momentum: momentum}
}

func SGDFactory(momentum float64) (OptimizerFactory, error) {
	if momentum < 0 || momentum >= 1 {
		return nil, fmt.Errorf("%w: momentum must be in [0, 1), got %v", common.ErrConfiguration, momentum)
	}
	return func() Optimizer {
		return NewSGD(momentum)
	}, nil
}

func (sgd *SGD) Step(params *model.ParameterStore, grads *model.ParameterStore, learningRate float64) error {
	if sgd.momentum == 0 {
		return params.AddScaled(-learningRate, grads)
	}

	if sgd.velocity == nil {
		sgd.velocity = grads.ZerosLike()
	}
	// v = momentum*v + g
	sgd.velocity.Scale(sgd.momentum)
	if err := sgd.velocity.AddScaled(1, grads); err != nil {
		return err
	}

	return params.AddScaled(-learningRate, sgd.velocity)
}
