package localrt

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/client"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func testRuntime(t *testing.T) (*LocalRuntime, learning.Architecture) {
	t.Helper()
	arch := learning.NewSoftmaxRegression(2, 2)
	factory, err := learning.SGDFactory(0)
	require.NoError(t, err)

	shards := []*model.Shard{
		{ClientID: 0, Samples: model.Dataset{
			{Features: []float64{1, 0}, Label: 0},
			{Features: []float64{0, 1}, Label: 1},
			{Features: []float64{0.9, 0.1}, Label: 0},
		}},
		{ClientID: 1},
	}

	rt, err := NewLocalRuntime(shards, func(clientId int) (*client.LocalTrainer, error) {
		return client.NewLocalTrainer(arch, factory, 2, 1, clientId)
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	return rt, arch
}

func TestLocalRuntimeTrainClient(t *testing.T) {
	rt, arch := testRuntime(t)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))
	snapshot := params.Clone()

	update, err := rt.TrainClient(context.Background(), &model.TrainTask{
		Round: 2, ClientID: 0, Params: params, Epochs: 1, LearningRate: 0.1,
	})
	require.NoError(t, err)
	require.Equal(t, 2, update.Round)
	require.Equal(t, 0, update.ClientID)
	require.Equal(t, 3, update.NumSamples)
	require.True(t, common.IsFinite(update.Loss))
	require.True(t, snapshot.Equal(params))
	require.Equal(t, []int{0, 1}, rt.ClientIds())
	require.NoError(t, rt.Close())
}

func TestLocalRuntimeErrors(t *testing.T) {
	rt, arch := testRuntime(t)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	_, err := rt.TrainClient(context.Background(), &model.TrainTask{ClientID: 1, Params: params, Epochs: 1, LearningRate: 0.1})
	require.ErrorIs(t, err, common.ErrEmptyShard)

	_, err = rt.TrainClient(context.Background(), &model.TrainTask{ClientID: 9, Params: params, Epochs: 1, LearningRate: 0.1})
	require.ErrorIs(t, err, common.ErrClientUnknown)

	_, err = rt.EvaluateClient(context.Background(), &model.EvaluateTask{ClientID: 9, Params: params})
	require.ErrorIs(t, err, common.ErrClientUnknown)
}

func TestLocalRuntimeEvaluateClient(t *testing.T) {
	rt, arch := testRuntime(t)
	params := arch.InitParams(rand.New(rand.NewPCG(1, 1)))

	evaluation, err := rt.EvaluateClient(context.Background(), &model.EvaluateTask{ClientID: 0, Params: params})
	require.NoError(t, err)
	require.Equal(t, 3, evaluation.NumSamples)
	require.GreaterOrEqual(t, evaluation.Accuracy, 0.0)
	require.LessOrEqual(t, evaluation.Accuracy, 1.0)
}

func TestNewLocalRuntimeRejectsDuplicateClients(t *testing.T) {
	arch := learning.NewSoftmaxRegression(2, 2)
	factory, err := learning.SGDFactory(0)
	require.NoError(t, err)

	_, err = NewLocalRuntime([]*model.Shard{{ClientID: 0}, {ClientID: 0}}, func(clientId int) (*client.LocalTrainer, error) {
		return client.NewLocalTrainer(arch, factory, 2, 1, clientId)
	}, hclog.NewNullLogger())
	require.ErrorIs(t, err, common.ErrConfiguration)
}
