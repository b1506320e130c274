package florch

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
)

// SelectClients draws max(1, floor(numClients*fraction)) distinct ids
// uniformly from 0..numClients-1. The result is sorted.
func SelectClients(rng *rand.Rand, numClients int, fraction float64) ([]int, error) {
	if numClients < 1 {
		return nil, fmt.Errorf("%w: number of clients must be at least 1, got %d", common.ErrConfiguration, numClients)
	}
	if !(fraction > 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w: client fraction must be in (0, 1], got %v", common.ErrConfiguration, fraction)
	}

	numSelected := max(1, int(math.Floor(float64(numClients)*fraction)))
	selected := rng.Perm(numClients)[:numSelected]
	sort.Ints(selected)

	return selected, nil
}

// selectFromPool applies SelectClients to an arbitrary pool of client ids.
func selectFromPool(rng *rand.Rand, pool []int, fraction float64) ([]int, error) {
	positions, err := SelectClients(rng, len(pool), fraction)
	if err != nil {
		return nil, err
	}

	selected := make([]int, len(positions))
	for i, pos := range positions {
		selected[i] = pool[pos]
	}
	sort.Ints(selected)

	return selected, nil
}
