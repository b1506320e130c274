package client

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/dataset"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestTrainer(t *testing.T, arch learning.Architecture) *LocalTrainer {
	t.Helper()
	factory, err := learning.SGDFactory(0)
	require.NoError(t, err)
	trainer, err := NewLocalTrainer(arch, factory, 16, 42, 0)
	require.NoError(t, err)
	return trainer
}

func testShard(t *testing.T) *model.Shard {
	t.Helper()
	data, err := dataset.Synthetic(dataset.SyntheticOptions{NumSamples: 120, NumFeatures: 4, NumClasses: 3, Spread: 0.5, Seed: 9})
	require.NoError(t, err)
	return &model.Shard{ClientID: 0, Samples: data}
}

func TestTrainDoesNotModifyInput(t *testing.T) {
	arch := learning.NewSoftmaxRegression(4, 3)
	trainer := newTestTrainer(t, arch)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))
	snapshot := params.Clone()

	updated, loss, err := trainer.Train(context.Background(), params, testShard(t), 2, 0.1)
	require.NoError(t, err)
	require.True(t, common.IsFinite(loss))
	require.True(t, snapshot.Equal(params))
	require.False(t, updated.Equal(params))
	require.NoError(t, params.CompatibleWith(updated))
}

func TestTrainImprovesAccuracy(t *testing.T) {
	arch := learning.NewMLP(4, 8, 3)
	trainer := newTestTrainer(t, arch)
	params := arch.InitParams(rand.New(rand.NewPCG(2, 2)))
	shard := testShard(t)

	_, lossBefore, err := trainer.Evaluate(params, shard)
	require.NoError(t, err)

	updated, _, err := trainer.Train(context.Background(), params, shard, 20, 0.1)
	require.NoError(t, err)

	accuracy, lossAfter, err := trainer.Evaluate(updated, shard)
	require.NoError(t, err)
	require.Less(t, lossAfter, lossBefore)
	require.GreaterOrEqual(t, accuracy, 0.0)
	require.LessOrEqual(t, accuracy, 1.0)
}

func TestTrainEmptyShard(t *testing.T) {
	arch := learning.NewSoftmaxRegression(4, 3)
	trainer := newTestTrainer(t, arch)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	_, _, err := trainer.Train(context.Background(), params, &model.Shard{ClientID: 3}, 1, 0.1)
	require.ErrorIs(t, err, common.ErrEmptyShard)

	_, _, err = trainer.Evaluate(params, &model.Shard{ClientID: 3})
	require.ErrorIs(t, err, common.ErrEmptyShard)
}

func TestTrainStopsOnCancelledContext(t *testing.T) {
	arch := learning.NewSoftmaxRegression(4, 3)
	trainer := newTestTrainer(t, arch)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := trainer.Train(ctx, params, testShard(t), 1, 0.1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalTrainerRejectsBatchSize(t *testing.T) {
	factory, err := learning.SGDFactory(0)
	require.NoError(t, err)
	_, err = NewLocalTrainer(learning.NewSoftmaxRegression(2, 2), factory, 0, 1, 0)
	require.ErrorIs(t, err, common.ErrConfiguration)
}
