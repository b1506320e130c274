package florch

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/cost"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/performance"
)

type FlProgress struct {
	globalRound          int
	accuracies           []float64
	losses               []float64
	inferenceTimes       []time.Duration
	accuracyHasConverged bool
	currentCost          float64
	costPerGlobalRound   float64
}

func newFlProgress() *FlProgress {
	return &FlProgress{
		accuracies:     []float64{},
		losses:         []float64{},
		inferenceTimes: []time.Duration{},
	}
}

func (p *FlProgress) clone() *FlProgress {
	c := *p
	c.accuracies = slices.Clone(p.accuracies)
	c.losses = slices.Clone(p.losses)
	c.inferenceTimes = slices.Clone(p.inferenceTimes)
	return &c
}

func movingAverage(values []float64, windowSize int) []float64 {
	if len(values) < windowSize {
		return nil // Not enough data for the window size
	}
	averages := make([]float64, len(values)-windowSize+1)
	for i := range averages {
		averages[i] = common.CalculateAverageFloat64(values[i : i+windowSize])
	}
	return averages
}

// hasConverged reports whether the last patience steps of the moving average
// of accuracies each changed by at most threshold.
func hasConverged(accuracies []float64, threshold float64, patience int, windowSize int) bool {
	averages := movingAverage(accuracies, windowSize)
	if len(averages) < patience+1 {
		return false
	}

	for i := len(averages) - patience; i < len(averages); i++ {
		improvement := averages[i] - averages[i-1]
		if math.Abs(improvement) > threshold {
			return false
		}
	}
	return true
}

func getResultsFileName(dir string, runId string) string {
	return filepath.Join(dir, fmt.Sprintf("results_%s_%s.csv", time.Now().Format("2006-01-02_15-04"), runId))
}

var resultsHeader = []string{"round", "accuracy", "loss", "inference_time_s", "cost_mb"}

// writeResultsToFile appends one round to the metrics log, writing the header
// when the file is new.
func writeResultsToFile(fileName string, round int, accuracy float64, loss float64, inferenceTime time.Duration,
	cost float64) error {
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(resultsHeader); err != nil {
			return err
		}
	}

	record := []string{fmt.Sprintf("%d", round), fmt.Sprintf("%.2f", accuracy), fmt.Sprintf("%.4f", loss),
		fmt.Sprintf("%.6f", inferenceTime.Seconds()), fmt.Sprintf("%.2f", cost)}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

const minRoundsForPrediction = 3

func (orch *FlOrchestrator) logPrediction(progress *FlProgress) {
	if len(progress.accuracies) < minRoundsForPrediction {
		return
	}

	pp, err := performance.NewPerformancePrediction(progress.accuracies, progress.losses,
		performance.LogarithmicRegression_PredictionType)
	if err != nil {
		orch.logger.Debug(fmt.Sprintf("Performance prediction unavailable: %s", err.Error()))
		return
	}
	orch.logger.Debug(fmt.Sprintf("Accuracy curve: %s", pp.PrintPrediction()))

	nextRound := len(progress.accuracies) + 1
	orch.logger.Debug(fmt.Sprintf("Forecast for round %d - Accuracy: %.2f%%, Loss: %.4f", nextRound,
		pp.PredictAccuracy(nextRound), pp.PredictLoss(nextRound)))

	if orch.config.Cost.CostType != cost.CostMinimization_CostType {
		return
	}
	target := orch.config.Cost.TargetAccuracy
	if round, ok := pp.PredictRoundForAccuracy(target); ok {
		orch.logger.Info(fmt.Sprintf("Target accuracy %.2f%% predicted at round %d with loss %.4f, estimated cost %.4f MB",
			target, round, pp.PredictLoss(round),
			float64(max(0, round-progress.globalRound))*progress.costPerGlobalRound+progress.currentCost))
	} else {
		orch.logger.Info(fmt.Sprintf("Target accuracy %.2f%% is not reachable on the current curve", target))
	}
}
