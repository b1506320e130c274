package partition

import (
	"fmt"
	"math/rand/v2"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
)

type Policy string

const (
	IID_Policy    Policy = common.PARTITION_IID
	NonIID_Policy Policy = common.PARTITION_NON_IID
)

func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case IID_Policy, NonIID_Policy:
		return Policy(name), nil
	default:
		return "", fmt.Errorf("%w: unknown partition policy %q", common.ErrConfiguration, name)
	}
}

// Partitioner splits a dataset into one shard per client. Shards are
// disjoint and every returned shard has ClientID equal to its index.
type Partitioner interface {
	Split(data model.Dataset, numClients int) ([]*model.Shard, error)
}

func New(policy Policy, seed uint64, logger hclog.Logger) (Partitioner, error) {
	switch policy {
	case IID_Policy:
		return &IID{seed: seed}, nil
	case NonIID_Policy:
		return NewNonIID(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown partition policy %q", common.ErrConfiguration, policy)
	}
}

// Partition is a convenience wrapper around New and Split that logs the
// resulting shard sizes.
func Partition(data model.Dataset, numClients int, policy Policy, seed uint64, logger hclog.Logger) ([]*model.Shard, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	partitioner, err := New(policy, seed, logger)
	if err != nil {
		return nil, err
	}

	shards, err := partitioner.Split(data, numClients)
	if err != nil {
		return nil, err
	}

	sizes := make([]int, len(shards))
	for i, shard := range shards {
		sizes[i] = shard.Len()
	}
	logger.Info(fmt.Sprintf("Data split across %d clients using %s method", numClients, policy), "sizes", sizes)

	return shards, nil
}

// IID shuffles sample indices with a seeded generator and cuts them into
// chunks of len/numClients. The remainder goes to the last chunk.
type IID struct {
	seed uint64
}

func NewIID(seed uint64) *IID {
	return &IID{seed: seed}
}

func (p *IID) Split(data model.Dataset, numClients int) ([]*model.Shard, error) {
	if numClients < 1 {
		return nil, fmt.Errorf("%w: number of clients must be at least 1, got %d", common.ErrConfiguration, numClients)
	}

	rng := rand.New(rand.NewPCG(p.seed, p.seed))
	indices := rng.Perm(len(data))

	chunkSize := len(data) / numClients
	shards := make([]*model.Shard, numClients)
	for i := 0; i < numClients; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numClients-1 {
			end = len(data)
		}
		shards[i] = newShard(i, data, indices[start:end])
	}

	return shards, nil
}

// NonIID groups the sorted distinct labels into numClients contiguous groups
// of len(labels)/numClients labels each; every sample goes to the client
// owning its label. Labels left over by the integer division belong to no
// client and their samples are dropped.
type NonIID struct {
	logger hclog.Logger
}

func NewNonIID(logger hclog.Logger) *NonIID {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NonIID{logger: logger}
}

func (p *NonIID) Split(data model.Dataset, numClients int) ([]*model.Shard, error) {
	if numClients < 1 {
		return nil, fmt.Errorf("%w: number of clients must be at least 1, got %d", common.ErrConfiguration, numClients)
	}

	logger := p.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	labels := data.Labels()
	labelsPerClient := len(labels) / numClients

	owner := make(map[int]int, len(labels))
	for client := 0; client < numClients; client++ {
		for _, label := range labels[client*labelsPerClient : (client+1)*labelsPerClient] {
			owner[label] = client
		}
	}

	dropped := labels[numClients*labelsPerClient:]
	if len(dropped) > 0 {
		logger.Warn("labels not assigned to any client, their samples are dropped", "labels", dropped)
	}

	indices := make([][]int, numClients)
	for idx, sample := range data {
		client, found := owner[sample.Label]
		if !found {
			continue
		}
		indices[client] = append(indices[client], idx)
	}

	shards := make([]*model.Shard, numClients)
	for client := range shards {
		shards[client] = newShard(client, data, indices[client])
		if shards[client].Len() == 0 {
			logger.Warn("client received an empty shard", "client", client)
		}
	}

	return shards, nil
}

func newShard(clientId int, data model.Dataset, indices []int) *model.Shard {
	shard := &model.Shard{
		ClientID: clientId,
		Indices:  make([]int, len(indices)),
		Samples:  make(model.Dataset, len(indices)),
	}
	copy(shard.Indices, indices)
	for i, idx := range indices {
		shard.Samples[i] = data[idx]
	}
	return shard
}
