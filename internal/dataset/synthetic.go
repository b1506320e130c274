package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// SyntheticOptions describes a Gaussian-blob classification dataset.
type SyntheticOptions struct {
	NumSamples  int     `yaml:"numSamples" json:"numSamples"`
	NumFeatures int     `yaml:"numFeatures" json:"numFeatures"`
	NumClasses  int     `yaml:"numClasses" json:"numClasses"`
	Spread      float64 `yaml:"spread" json:"spread"`
	Seed        uint64  `yaml:"seed" json:"seed"`
}

func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		NumSamples:  2000,
		NumFeatures: 16,
		NumClasses:  10,
		Spread:      1.0,
		Seed:        7,
	}
}

// Synthetic generates one Gaussian cluster per class. Labels are balanced
// (sample i has label i mod NumClasses before shuffling) and the output is
// fully determined by the seed.
func Synthetic(opts SyntheticOptions) (model.Dataset, error) {
	if opts.NumSamples < 1 || opts.NumFeatures < 1 || opts.NumClasses < 1 {
		return nil, fmt.Errorf("%w: synthetic dataset needs positive samples, features and classes", common.ErrConfiguration)
	}
	if opts.Spread <= 0 {
		opts.Spread = 1.0
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	centers := make([][]float64, opts.NumClasses)
	for c := range centers {
		centers[c] = make([]float64, opts.NumFeatures)
		for f := range centers[c] {
			centers[c][f] = rng.NormFloat64() * 3
		}
	}

	data := make(model.Dataset, opts.NumSamples)
	for i := range data {
		label := i % opts.NumClasses
		features := make([]float64, opts.NumFeatures)
		for f := range features {
			features[f] = centers[label][f] + rng.NormFloat64()*opts.Spread
		}
		data[i] = model.Sample{Features: features, Label: label}
	}

	rng.Shuffle(len(data), func(i, j int) {
		data[i], data[j] = data[j], data[i]
	})

	return data, nil
}

// SplitHoldOut shuffles a copy of data and cuts off the trailing fraction as
// the held-out evaluation set.
func SplitHoldOut(data model.Dataset, fraction float64, seed uint64) (model.Dataset, model.Dataset, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("%w: hold-out fraction must be in (0, 1), got %v", common.ErrConfiguration, fraction)
	}

	shuffled := make(model.Dataset, len(data))
	copy(shuffled, data)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testSize := int(float64(len(shuffled)) * fraction)
	if testSize == 0 || testSize == len(shuffled) {
		return nil, nil, fmt.Errorf("%w: hold-out split of %d samples with fraction %v leaves an empty side",
			common.ErrConfiguration, len(shuffled), fraction)
	}

	cut := len(shuffled) - testSize
	return shuffled[:cut], shuffled[cut:], nil
}
