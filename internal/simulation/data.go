package simulation

import (
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/dataset"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/partition"
	"github.com/hashicorp/go-hclog"
)

// Data is the prepared input of a run. Every process that derives it from
// the same configuration gets identical shards.
type Data struct {
	Train        model.Dataset
	HeldOut      model.Dataset
	Shards       []*model.Shard
	Architecture learning.Architecture
}

func PrepareData(cfg *flconfig.FlConfiguration, logger hclog.Logger) (*Data, error) {
	train, heldOut, err := loadDatasets(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("Loaded %d training and %d held-out samples", len(train), len(heldOut)))

	policy, err := partition.ParsePolicy(cfg.DataSplit)
	if err != nil {
		return nil, err
	}
	shards, err := partition.Partition(train, cfg.NumClients, policy, cfg.Seed, logger)
	if err != nil {
		return nil, err
	}

	arch, err := learning.NewArchitecture(learning.ArchitectureConfig{
		Name:        cfg.Model.Architecture,
		HiddenSize:  cfg.Model.HiddenSize,
		NumFeatures: train.NumFeatures(),
		NumClasses:  max(train.NumClasses(), heldOut.NumClasses()),
	})
	if err != nil {
		return nil, err
	}

	return &Data{Train: train, HeldOut: heldOut, Shards: shards, Architecture: arch}, nil
}

func loadDatasets(cfg *flconfig.FlConfiguration) (model.Dataset, model.Dataset, error) {
	var data model.Dataset
	var err error

	switch cfg.Dataset.Source {
	case flconfig.Csv_DatasetSource:
		data, err = dataset.LoadCSV(cfg.Dataset.TrainCsv)
	default:
		data, err = dataset.Synthetic(cfg.Dataset.Synthetic)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Dataset.TestCsv != "" {
		heldOut, err := dataset.LoadCSV(cfg.Dataset.TestCsv)
		if err != nil {
			return nil, nil, err
		}
		return data, heldOut, nil
	}

	return dataset.SplitHoldOut(data, cfg.Dataset.HoldOutFraction, cfg.Seed)
}

// SelectShards returns the shards of the given clients, or all of them when
// clientIds is empty.
func SelectShards(shards []*model.Shard, clientIds []int) ([]*model.Shard, error) {
	if len(clientIds) == 0 {
		return shards, nil
	}

	selected := make([]*model.Shard, 0, len(clientIds))
	for _, id := range clientIds {
		if id < 0 || id >= len(shards) {
			return nil, fmt.Errorf("client %d is out of range [0, %d)", id, len(shards))
		}
		selected = append(selected, shards[id])
	}
	return selected, nil
}
