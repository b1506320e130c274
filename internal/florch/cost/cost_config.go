package cost

import (
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
)

// CostConfiguration selects the stopping criterion applied after every round
// in addition to the configured number of rounds.
type CostConfiguration struct {
	CostType       string  `yaml:"costType" json:"costType"`
	Budget         float64 `yaml:"budget" json:"budget"`
	TargetAccuracy float64 `yaml:"targetAccuracy" json:"targetAccuracy"`
}

const None_CostType = "none"
const TotalBudget_CostType = "totalBudget"
const CostMinimization_CostType = "costMin"

func (cc *CostConfiguration) Validate() error {
	switch cc.CostType {
	case "", None_CostType:
		return nil
	case TotalBudget_CostType:
		if cc.Budget <= 0 {
			return fmt.Errorf("%w: totalBudget needs a positive budget, got %v", common.ErrConfiguration, cc.Budget)
		}
	case CostMinimization_CostType:
		if cc.TargetAccuracy <= 0 || cc.TargetAccuracy > 100 {
			return fmt.Errorf("%w: costMin needs a target accuracy in (0, 100], got %v", common.ErrConfiguration, cc.TargetAccuracy)
		}
	default:
		return fmt.Errorf("%w: unknown cost type %q", common.ErrConfiguration, cc.CostType)
	}
	return nil
}

// ShouldStop reports whether the run should end after a round that brought
// the cumulative cost to currentCost and the global accuracy to accuracy, and
// a human-readable reason.
func (cc *CostConfiguration) ShouldStop(currentCost float64, accuracy float64) (bool, string) {
	switch cc.CostType {
	case TotalBudget_CostType:
		if currentCost >= cc.Budget {
			return true, fmt.Sprintf("Budget exceeded!\nTotal cost: %.2f\nFinal accuracy: %.2f", currentCost, accuracy)
		}
	case CostMinimization_CostType:
		if accuracy >= cc.TargetAccuracy {
			return true, fmt.Sprintf("Target accuracy reached!\nTotal cost: %.2f\nFinal accuracy: %.2f", currentCost, accuracy)
		}
	}
	return false, ""
}
