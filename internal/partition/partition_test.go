package partition

import (
	"sort"
	"testing"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func labeledDataset(n int, numLabels int) model.Dataset {
	data := make(model.Dataset, n)
	for i := range data {
		data[i] = model.Sample{Features: []float64{float64(i)}, Label: i % numLabels}
	}
	return data
}

func allIndices(shards []*model.Shard) []int {
	indices := []int{}
	for _, shard := range shards {
		indices = append(indices, shard.Indices...)
	}
	sort.Ints(indices)
	return indices
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy("non_iid")
	require.NoError(t, err)
	require.Equal(t, NonIID_Policy, policy)

	_, err = ParsePolicy("dirichlet")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestIIDCoversDatasetExactlyOnce(t *testing.T) {
	data := labeledDataset(400, 10)

	shards, err := Partition(data, 4, IID_Policy, 42, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, shards, 4)

	for i, shard := range shards {
		require.Equal(t, i, shard.ClientID)
		require.Equal(t, 100, shard.Len())
		for j, idx := range shard.Indices {
			require.Equal(t, data[idx], shard.Samples[j])
		}
	}

	expected := make([]int, 400)
	for i := range expected {
		expected[i] = i
	}
	require.Equal(t, expected, allIndices(shards))
}

func TestIIDRemainderGoesToLastChunk(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		numClients int
		expected   []int
	}{
		{"even", 12, 3, []int{4, 4, 4}},
		{"remainder of one", 13, 3, []int{4, 4, 5}},
		{"remainder of three", 11, 4, []int{2, 2, 2, 5}},
		{"more clients than samples", 2, 3, []int{0, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards, err := NewIID(1).Split(labeledDataset(tt.size, 2), tt.numClients)
			require.NoError(t, err)

			sizes := []int{}
			for _, shard := range shards {
				sizes = append(sizes, shard.Len())
			}
			require.Equal(t, tt.expected, sizes)
			require.Len(t, allIndices(shards), tt.size)
		})
	}
}

func TestIIDIsDeterministicPerSeed(t *testing.T) {
	data := labeledDataset(50, 5)

	first, err := NewIID(7).Split(data, 5)
	require.NoError(t, err)
	second, err := NewIID(7).Split(data, 5)
	require.NoError(t, err)
	other, err := NewIID(8).Split(data, 5)
	require.NoError(t, err)

	require.Equal(t, first[0].Indices, second[0].Indices)
	require.NotEqual(t, first[0].Indices, other[0].Indices)
}

func TestNonIIDAssignsByLabelGroup(t *testing.T) {
	data := labeledDataset(100, 10)

	shards, err := NewNonIID(hclog.NewNullLogger()).Split(data, 3)
	require.NoError(t, err)
	require.Len(t, shards, 3)

	// 10 labels over 3 clients: 3 labels each, label 9 is dropped.
	expectedLabels := [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}}
	for i, shard := range shards {
		require.Equal(t, expectedLabels[i], shard.Samples.Labels())
		require.Equal(t, 30, shard.Len())
	}

	indices := allIndices(shards)
	require.Len(t, indices, 90)
	for i := 1; i < len(indices); i++ {
		require.NotEqual(t, indices[i-1], indices[i])
	}

	again, err := NewNonIID(hclog.NewNullLogger()).Split(data, 3)
	require.NoError(t, err)
	for i := range shards {
		require.Equal(t, shards[i].Indices, again[i].Indices)
	}
}

func TestNonIIDMoreClientsThanLabels(t *testing.T) {
	shards, err := NewNonIID(hclog.NewNullLogger()).Split(labeledDataset(20, 2), 3)
	require.NoError(t, err)
	require.Len(t, shards, 3)
	for _, shard := range shards {
		require.Equal(t, 0, shard.Len())
	}
}

func TestPartitionRejectsZeroClients(t *testing.T) {
	for _, policy := range []Policy{IID_Policy, NonIID_Policy} {
		_, err := Partition(labeledDataset(10, 2), 0, policy, 1, hclog.NewNullLogger())
		require.ErrorIs(t, err, common.ErrConfiguration)
	}
}

func TestPartitionWithoutLogger(t *testing.T) {
	for _, policy := range []Policy{IID_Policy, NonIID_Policy} {
		shards, err := Partition(labeledDataset(30, 3), 4, policy, 1, nil)
		require.NoError(t, err)
		require.Len(t, shards, 4)
	}

	shards, err := (&NonIID{}).Split(labeledDataset(20, 2), 3)
	require.NoError(t, err)
	require.Len(t, shards, 3)
}

func TestUtilities(t *testing.T) {
	data := labeledDataset(40, 4)
	iidShards, err := NewIID(3).Split(data, 2)
	require.NoError(t, err)
	skewedShards, err := NewNonIID(hclog.NewNullLogger()).Split(data, 2)
	require.NoError(t, err)

	skewed := Utilities(skewedShards, 4)
	require.Len(t, skewed, 2)
	require.InDelta(t, 0.5, skewed[0].DatasetSizeScore, 1e-12)
	require.Equal(t, map[int]int64{0: 10, 1: 10}, skewed[0].DataDistribution)

	iid := Utilities(iidShards, 4)
	require.Greater(t, skewed[0].DataDistributionScore, iid[0].DataDistributionScore)
}
