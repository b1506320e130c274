package florch

import (
	"fmt"
	"sort"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/partition"
)

func (orch *FlOrchestrator) calculateDatasetBasedScores(numClasses int) {
	shards := make([]*model.Shard, len(orch.clients))
	for i, c := range orch.clients {
		shards[i] = c.Shard
	}

	utilities := partition.Utilities(shards, numClasses)
	for i, c := range orch.clients {
		c.ClientUtility = utilities[i]
	}
}

func (orch *FlOrchestrator) printConfiguration() {
	clients := make([]*model.ClientState, len(orch.clients))
	copy(clients, orch.clients)
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ClientUtility.DataDistributionScore < clients[j].ClientUtility.DataDistributionScore
	})

	configToPrint := ""
	configToPrint += fmt.Sprintf("Run %s ::\n", orch.runId)
	configToPrint += fmt.Sprintf("\tClients: %d\t| Fraction: %.2f\t| Rounds: %d\t| Epochs: %d\n", orch.config.NumClients,
		orch.config.ClientFraction, orch.config.Rounds, orch.config.LocalEpochs)
	configToPrint += fmt.Sprintf("\tBatch size: %d\t| Learning rate: %g\t| Split: %s\t| Weighting: %s\n", orch.config.BatchSize,
		orch.config.LearningRate, orch.config.DataSplit, orch.config.Weighting)
	configToPrint += fmt.Sprintf("\tModel: %s (%d parameters, %.4f MB)\n", orch.arch.Name(), orch.global.NumParams(), orch.modelSizeMB)
	configToPrint += fmt.Sprintln("Clients sorted by distribution score ascending ::")
	for _, c := range clients {
		configToPrint += fmt.Sprintf("\tClient %d\t| Samples: %d\t| Size score: %.3f\t| KLD score: %.5f\t| Distribution: %v\n",
			c.ClientID, c.Shard.Len(), c.ClientUtility.DatasetSizeScore, c.ClientUtility.DataDistributionScore,
			c.ClientUtility.DataDistribution)
	}

	orch.logger.Info(configToPrint)
}
