package localrt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/client"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
)

// TrainerFactory builds the trainer that serves one client.
type TrainerFactory func(clientId int) (*client.LocalTrainer, error)

type hostedClient struct {
	shard   *model.Shard
	trainer *client.LocalTrainer
}

// LocalRuntime runs clients in-process. Calls for different clients may run
// concurrently; calls for the same client are serialized by its trainer.
type LocalRuntime struct {
	logger  hclog.Logger
	clients map[int]*hostedClient
}

var _ contorch.IClientRuntime = (*LocalRuntime)(nil)

func NewLocalRuntime(shards []*model.Shard, newTrainer TrainerFactory, logger hclog.Logger) (*LocalRuntime, error) {
	rt := &LocalRuntime{
		logger:  logger,
		clients: make(map[int]*hostedClient, len(shards)),
	}

	for _, shard := range shards {
		if _, dup := rt.clients[shard.ClientID]; dup {
			return nil, fmt.Errorf("%w: client %d hosted twice", common.ErrConfiguration, shard.ClientID)
		}
		trainer, err := newTrainer(shard.ClientID)
		if err != nil {
			return nil, err
		}
		rt.clients[shard.ClientID] = &hostedClient{shard: shard, trainer: trainer}
	}

	return rt, nil
}

func (rt *LocalRuntime) ClientIds() []int {
	ids := make([]int, 0, len(rt.clients))
	for id := range rt.clients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (rt *LocalRuntime) TrainClient(ctx context.Context, task *model.TrainTask) (*model.ClientUpdate, error) {
	hosted, found := rt.clients[task.ClientID]
	if !found {
		return nil, fmt.Errorf("%w: %d", common.ErrClientUnknown, task.ClientID)
	}

	start := time.Now()
	params, loss, err := hosted.trainer.Train(ctx, task.Params, hosted.shard, task.Epochs, task.LearningRate)
	if err != nil {
		return nil, err
	}

	rt.logger.Info(fmt.Sprintf("Client %d - Local Training Loss: %.4f", task.ClientID, loss))

	return &model.ClientUpdate{
		Round:      task.Round,
		ClientID:   task.ClientID,
		Params:     params,
		NumSamples: hosted.shard.Len(),
		Loss:       loss,
		Duration:   time.Since(start),
	}, nil
}

func (rt *LocalRuntime) EvaluateClient(ctx context.Context, task *model.EvaluateTask) (*model.ClientEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hosted, found := rt.clients[task.ClientID]
	if !found {
		return nil, fmt.Errorf("%w: %d", common.ErrClientUnknown, task.ClientID)
	}

	accuracy, loss, err := hosted.trainer.Evaluate(task.Params, hosted.shard)
	if err != nil {
		return nil, err
	}

	return &model.ClientEvaluation{
		ClientID:   task.ClientID,
		Accuracy:   accuracy,
		Loss:       loss,
		NumSamples: hosted.shard.Len(),
	}, nil
}

func (rt *LocalRuntime) Close() error {
	return nil
}
