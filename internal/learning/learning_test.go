package learning

import (
	"math/rand/v2"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/stretchr/testify/require"
)

func testBatch() model.Dataset {
	return model.Dataset{
		{Features: []float64{1.0, 0.2, -0.3}, Label: 0},
		{Features: []float64{-0.5, 1.1, 0.4}, Label: 1},
		{Features: []float64{0.3, -0.8, 1.2}, Label: 2},
		{Features: []float64{0.9, 0.1, 0.0}, Label: 0},
	}
}

func architectures() []Architecture {
	return []Architecture{
		NewSoftmaxRegression(3, 3),
		NewMLP(3, 5, 3),
	}
}

func TestNewArchitecture(t *testing.T) {
	arch, err := NewArchitecture(ArchitectureConfig{Name: "mlp", HiddenSize: 8, NumFeatures: 4, NumClasses: 2})
	require.NoError(t, err)
	require.Equal(t, "mlp", arch.Name())
	require.Equal(t, "fc1.weight[8 4], fc1.bias[8], fc2.weight[2 8], fc2.bias[2]", arch.Schema().String())

	_, err = NewArchitecture(ArchitectureConfig{Name: "mlp", NumFeatures: 4, NumClasses: 2})
	require.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewArchitecture(ArchitectureConfig{Name: "cnn", NumFeatures: 4, NumClasses: 2})
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	const eps = 1e-6

	for _, arch := range architectures() {
		t.Run(arch.Name(), func(t *testing.T) {
			params := arch.InitParams(rand.New(rand.NewPCG(1, 2)))
			batch := testBatch()

			_, grads, err := arch.Gradients(params, batch)
			require.NoError(t, err)

			for _, name := range params.Names() {
				tensor, _ := params.Get(name)
				grad, _ := grads.Get(name)
				for i := range tensor.Data {
					orig := tensor.Data[i]

					tensor.Data[i] = orig + eps
					_, lossPlus, err := arch.Predict(params, batch)
					require.NoError(t, err)
					tensor.Data[i] = orig - eps
					_, lossMinus, err := arch.Predict(params, batch)
					require.NoError(t, err)
					tensor.Data[i] = orig

					numeric := (lossPlus - lossMinus) / (2 * eps)
					require.InDelta(t, numeric, grad.Data[i], 1e-5, "%s[%d]", name, i)
				}
			}
		})
	}
}

func TestPredictDoesNotMutateParams(t *testing.T) {
	for _, arch := range architectures() {
		params := arch.InitParams(rand.New(rand.NewPCG(3, 4)))
		before := params.Clone()

		_, _, err := arch.Predict(params, testBatch())
		require.NoError(t, err)
		_, _, err = arch.Gradients(params, testBatch())
		require.NoError(t, err)

		require.True(t, before.Equal(params))
	}
}

func TestSGDReducesLoss(t *testing.T) {
	for _, momentum := range []float64{0, 0.9} {
		factory, err := SGDFactory(momentum)
		require.NoError(t, err)

		for _, arch := range architectures() {
			params := arch.InitParams(rand.New(rand.NewPCG(5, 6)))
			optimizer := factory()
			batch := testBatch()

			_, initialLoss, err := arch.Predict(params, batch)
			require.NoError(t, err)

			for step := 0; step < 2000; step++ {
				_, grads, err := arch.Gradients(params, batch)
				require.NoError(t, err)
				require.NoError(t, optimizer.Step(params, grads, 0.05))
			}

			predictions, finalLoss, err := arch.Predict(params, batch)
			require.NoError(t, err)
			require.Less(t, finalLoss, initialLoss)
			require.Equal(t, []int{0, 1, 2, 0}, predictions)
		}
	}
}

func TestSGDFactoryRejectsInvalidMomentum(t *testing.T) {
	_, err := SGDFactory(1.5)
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestPredictRejectsBadInput(t *testing.T) {
	arch := NewSoftmaxRegression(3, 3)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	_, _, err := arch.Predict(params, model.Dataset{{Features: []float64{1, 2, 3}, Label: 5}})
	require.ErrorIs(t, err, common.ErrConfiguration)

	_, _, err = arch.Predict(params, model.Dataset{})
	require.ErrorIs(t, err, common.ErrEmptyShard)

	_, _, err = arch.Predict(NewMLP(3, 2, 3).InitParams(rand.New(rand.NewPCG(1, 1))), testBatch())
	require.ErrorIs(t, err, common.ErrSchemaMismatch)
}
