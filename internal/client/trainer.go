package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// LocalTrainer runs local training and evaluation for one client. Mini-batch
// order is reshuffled every epoch from a generator seeded per client, so a
// trainer must not be shared between clients.
type LocalTrainer struct {
	arch         learning.Architecture
	newOptimizer learning.OptimizerFactory
	batchSize    int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewLocalTrainer(arch learning.Architecture, newOptimizer learning.OptimizerFactory, batchSize int,
	seed uint64, clientId int) (*LocalTrainer, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", common.ErrConfiguration, batchSize)
	}

	return &LocalTrainer{
		arch:         arch,
		newOptimizer: newOptimizer,
		batchSize:    batchSize,
		rng:          rand.New(rand.NewPCG(seed, uint64(clientId))),
	}, nil
}

// Train runs epochs passes over the shard on a private copy of params and
// returns the copy together with the mean epoch loss, where each epoch loss
// is the mean of its batch losses. params is never modified.
func (lt *LocalTrainer) Train(ctx context.Context, params *model.ParameterStore, shard *model.Shard,
	epochs int, learningRate float64) (*model.ParameterStore, float64, error) {
	if shard == nil || shard.Len() == 0 {
		return nil, 0, common.ErrEmptyShard
	}
	if epochs < 1 {
		return nil, 0, fmt.Errorf("%w: epochs must be positive, got %d", common.ErrConfiguration, epochs)
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()

	local := params.Clone()
	optimizer := lt.newOptimizer()

	var totalLoss float64
	for epoch := 0; epoch < epochs; epoch++ {
		order := lt.rng.Perm(shard.Len())

		var epochLoss float64
		numBatches := 0
		for start := 0; start < len(order); start += lt.batchSize {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}

			end := min(start+lt.batchSize, len(order))
			batch := make(model.Dataset, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, shard.Samples[idx])
			}

			loss, grads, err := lt.arch.Gradients(local, batch)
			if err != nil {
				return nil, 0, err
			}
			if err := optimizer.Step(local, grads, learningRate); err != nil {
				return nil, 0, err
			}

			epochLoss += loss
			numBatches++
		}
		totalLoss += epochLoss / float64(numBatches)
	}

	avgLoss := totalLoss / float64(epochs)
	if !common.IsFinite(avgLoss) || !local.AllFinite() {
		return nil, 0, fmt.Errorf("local training diverged (loss %v)", avgLoss)
	}

	return local, avgLoss, nil
}

// Evaluate returns the fraction of correctly classified samples and the mean
// batch loss of params on the shard.
func (lt *LocalTrainer) Evaluate(params *model.ParameterStore, shard *model.Shard) (float64, float64, error) {
	if shard == nil || shard.Len() == 0 {
		return 0, 0, common.ErrEmptyShard
	}

	correct := 0
	var totalLoss float64
	numBatches := 0
	for start := 0; start < shard.Len(); start += lt.batchSize {
		batch := shard.Samples[start:min(start+lt.batchSize, shard.Len())]
		predictions, loss, err := lt.arch.Predict(params, batch)
		if err != nil {
			return 0, 0, err
		}
		for i, predicted := range predictions {
			if predicted == batch[i].Label {
				correct++
			}
		}
		totalLoss += loss
		numBatches++
	}

	return float64(correct) / float64(shard.Len()), totalLoss / float64(numBatches), nil
}
