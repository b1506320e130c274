package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/checkpoint"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/dataset"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func smallConfig(t *testing.T) *flconfig.FlConfiguration {
	t.Helper()
	dir := t.TempDir()

	cfg := flconfig.DefaultFlConfiguration()
	cfg.NumClients = 3
	cfg.Rounds = 2
	cfg.BatchSize = 16
	cfg.EvalBatchSize = 16
	cfg.LearningRate = 0.1
	cfg.Model.HiddenSize = 8
	cfg.Dataset.Synthetic = dataset.SyntheticOptions{NumSamples: 150, NumFeatures: 4, NumClasses: 3, Spread: 0.5, Seed: 3}
	cfg.OutputPath = filepath.Join(dir, "global_model.json")
	cfg.MetricsLogPath = filepath.Join(dir, "results.csv")
	return cfg
}

func TestPrepareDataIsDeterministic(t *testing.T) {
	cfg := smallConfig(t)

	first, err := PrepareData(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	second, err := PrepareData(cfg, hclog.NewNullLogger())
	require.NoError(t, err)

	require.Len(t, first.Shards, 3)
	require.Equal(t, 150, len(first.Train)+len(first.HeldOut))
	for i := range first.Shards {
		require.Equal(t, first.Shards[i].Indices, second.Shards[i].Indices)
	}
	require.Equal(t, first.Architecture.Schema(), second.Architecture.Schema())

	selected, err := SelectShards(first.Shards, []int{2, 0})
	require.NoError(t, err)
	require.Equal(t, 2, selected[0].ClientID)
	require.Equal(t, 0, selected[1].ClientID)

	_, err = SelectShards(first.Shards, []int{3})
	require.Error(t, err)
}

func TestBuildAndRunLocal(t *testing.T) {
	cfg := smallConfig(t)

	sim, err := Build(context.Background(), cfg, Options{Logger: hclog.NewNullLogger()})
	require.NoError(t, err)
	defer sim.Close()

	require.NoError(t, sim.Orchestrator.Run(context.Background()))
	require.Len(t, sim.Orchestrator.History(), 2)

	store := checkpoint.NewFileStore(sim.Data.Architecture.Name(), hclog.NewNullLogger())
	saved, err := store.Load(context.Background(), cfg.OutputPath, sim.Data.Architecture.Schema())
	require.NoError(t, err)
	require.True(t, saved.Equal(sim.Orchestrator.GlobalParams()))

	resumed := smallConfig(t)
	resumed.Checkpoint.ResumeFrom = cfg.OutputPath
	sim2, err := Build(context.Background(), resumed, Options{})
	require.NoError(t, err)
	defer sim2.Close()
	require.True(t, saved.Equal(sim2.Orchestrator.GlobalParams()))
}

func TestBuildFailsOnMissingResumeCheckpoint(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Checkpoint.ResumeFrom = filepath.Join(t.TempDir(), "missing.json")

	_, err := Build(context.Background(), cfg, Options{})
	require.ErrorIs(t, err, common.ErrCheckpointNotFound)
}

func TestBuildAndRunOverEmbeddedNats(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Transport.Type = common.TRANSPORT_NATS
	cfg.Transport.Embedded = true
	cfg.EvaluateClients = true

	sim, err := Build(context.Background(), cfg, Options{Logger: hclog.NewNullLogger()})
	require.NoError(t, err)
	defer sim.Close()

	require.NoError(t, sim.Orchestrator.Run(context.Background()))

	history := sim.Orchestrator.History()
	require.Len(t, history, 2)
	require.Empty(t, history[1].ExcludedClients)
	require.Equal(t, []int{0, 1, 2}, history[1].ParticipatingClientIDs)
}
