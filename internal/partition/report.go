package partition

import (
	"math"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// Utilities scores every shard against the overall label distribution.
// DatasetSizeScore is the shard's share of all samples. DataDistributionScore
// is the KL divergence between the overall distribution and the distribution
// without that shard: the larger it is, the more the shard shifts the mix.
func Utilities(shards []*model.Shard, numClasses int) []model.ClientUtility {
	var totalSamples int64
	for _, shard := range shards {
		totalSamples += int64(shard.Len())
	}

	overall := labelDistribution(shards, -1, numClasses)

	utilities := make([]model.ClientUtility, len(shards))
	for i, shard := range shards {
		sizeScore := 0.0
		if totalSamples > 0 {
			sizeScore = float64(shard.Len()) / float64(totalSamples)
		}
		utilities[i] = model.ClientUtility{
			DatasetSizeScore:      sizeScore,
			DataDistribution:      shard.LabelCounts(),
			DataDistributionScore: klDivergence(overall, labelDistribution(shards, shard.ClientID, numClasses)),
		}
	}

	return utilities
}

// labelDistribution returns per-class sample fractions over all shards except
// skipClient. Zero entries are floored to 0.0001 so the divergence stays finite.
func labelDistribution(shards []*model.Shard, skipClient int, numClasses int) []float64 {
	var totalSamples int64
	samplesPerClass := make([]int64, numClasses)
	for _, shard := range shards {
		if shard.ClientID == skipClient {
			continue
		}
		for class, samples := range shard.LabelCounts() {
			if class < numClasses {
				samplesPerClass[class] += samples
				totalSamples += samples
			}
		}
	}

	distribution := make([]float64, numClasses)
	for i, samples := range samplesPerClass {
		percentage := 0.0
		if totalSamples > 0 {
			percentage = float64(samples) / float64(totalSamples)
		}
		if percentage == 0.0 {
			percentage = 0.0001
		}
		distribution[i] = percentage
	}

	return distribution
}

func klDivergence(p, q []float64) float64 {
	klDiv := 0.0
	for i := 0; i < len(p) && i < len(q); i++ {
		if q[i] == 0 {
			continue
		}
		klDiv += p[i] * math.Log(p[i]/q[i])
	}
	return klDiv
}
