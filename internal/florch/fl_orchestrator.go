package florch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/checkpoint"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/evaluator"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/events"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/cost"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/learning"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/metrics"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

type FlState int

const (
	Idle_FlState FlState = iota
	RoundInProgress_FlState
	Done_FlState
)

func (s FlState) String() string {
	switch s {
	case Idle_FlState:
		return "idle"
	case RoundInProgress_FlState:
		return "round_in_progress"
	case Done_FlState:
		return "done"
	default:
		return "unknown"
	}
}

const checkpointSaveTimeout = 30 * time.Second

// Dependencies are the collaborators of one run. Architecture, Runtime,
// Shards and HeldOut are required; the rest default to no-ops.
type Dependencies struct {
	Architecture learning.Architecture
	Runtime      contorch.IClientRuntime
	Shards       []*model.Shard
	HeldOut      model.Dataset
	// InitialParams replaces random initialization, e.g. when resuming.
	InitialParams   *model.ParameterStore
	CheckpointStore checkpoint.Store
	Metrics         metrics.Collector
	EventBus        *events.EventBus
	Logger          hclog.Logger
	RunId           string
}

// FlOrchestrator owns the global model and drives the rounds of one run.
// The global store is only replaced by a successful round; readers get
// copies.
type FlOrchestrator struct {
	config          *flconfig.FlConfiguration
	runId           string
	arch            learning.Architecture
	runtime         contorch.IClientRuntime
	evaluator       *evaluator.Evaluator
	heldOut         model.Dataset
	checkpointStore checkpoint.Store
	scheduler       *checkpoint.Scheduler
	metrics         metrics.Collector
	eventBus        *events.EventBus
	logger          hclog.Logger
	clients         []*model.ClientState
	eligible        []int
	modelSizeMB     float64
	resultsFileName string

	// roundMu serializes rounds and guards rng and the client states.
	roundMu sync.Mutex
	rng     *rand.Rand

	mu            sync.RWMutex
	global        *model.ParameterStore
	history       []model.RoundRecord
	state         FlState
	progress      *FlProgress
	started       bool
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}
	runErr        error
	exitMessage   string
}

// FlStatus is a point-in-time summary of a run.
type FlStatus struct {
	RunId           string  `json:"runId"`
	State           string  `json:"state"`
	CompletedRounds int     `json:"completedRounds"`
	TotalRounds     int     `json:"totalRounds"`
	LastAccuracy    float64 `json:"lastAccuracy"`
	LastLoss        float64 `json:"lastLoss"`
	CurrentCost     float64 `json:"currentCost"`
	Converged       bool    `json:"converged"`
	ExitMessage     string  `json:"exitMessage,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func NewFlOrchestrator(deps Dependencies, cfg *flconfig.FlConfiguration) (*FlOrchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing configuration", common.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Architecture == nil || deps.Runtime == nil {
		return nil, fmt.Errorf("%w: architecture and client runtime are required", common.ErrConfiguration)
	}
	if len(deps.Shards) != cfg.NumClients {
		return nil, fmt.Errorf("%w: %d shards for %d clients", common.ErrConfiguration, len(deps.Shards), cfg.NumClients)
	}
	if len(deps.HeldOut) == 0 {
		return nil, fmt.Errorf("%w: held-out dataset is empty", common.ErrConfiguration)
	}

	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewNop()
	}
	runId := deps.RunId
	if runId == "" {
		runId = uuid.NewString()
	}

	hosted := make(map[int]bool)
	for _, id := range deps.Runtime.ClientIds() {
		hosted[id] = true
	}
	for i, shard := range deps.Shards {
		if shard == nil || shard.ClientID != i {
			return nil, fmt.Errorf("%w: shard %d does not belong to client %d", common.ErrConfiguration, i, i)
		}
		if !hosted[i] {
			return nil, fmt.Errorf("%w: client %d is not hosted by the runtime", common.ErrConfiguration, i)
		}
	}

	initial := deps.InitialParams
	if initial == nil {
		initial = deps.Architecture.InitParams(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed)))
	} else {
		initial = initial.Clone()
	}
	if err := deps.Architecture.Schema().Check(initial); err != nil {
		return nil, err
	}

	eval, err := evaluator.NewEvaluator(deps.Architecture, cfg.EvalBatchSize)
	if err != nil {
		return nil, err
	}

	orch := &FlOrchestrator{
		config:          cfg,
		runId:           runId,
		arch:            deps.Architecture,
		runtime:         deps.Runtime,
		evaluator:       eval,
		heldOut:         deps.HeldOut,
		checkpointStore: deps.CheckpointStore,
		metrics:         collector,
		eventBus:        deps.EventBus,
		logger:          logger.Named(fmt.Sprintf("fl-orch-%s", shortRunId(runId))),
		rng:             rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		global:          initial,
		history:         []model.RoundRecord{},
		state:           Idle_FlState,
		progress:        newFlProgress(),
		modelSizeMB:     cost.ModelSizeMB(initial),
	}

	for i, shard := range deps.Shards {
		orch.clients = append(orch.clients, &model.ClientState{
			ClientID:     i,
			Shard:        shard,
			LocalParams:  initial.Clone(),
			LearningRate: cfg.LearningRate,
		})

		if shard.Len() == 0 {
			orch.logger.Warn(fmt.Sprintf("Client %d has an empty shard", i))
			if cfg.EmptyClients == common.EMPTY_CLIENTS_EXCLUDE {
				continue
			}
		}
		orch.eligible = append(orch.eligible, i)
	}
	if len(orch.eligible) == 0 {
		return nil, fmt.Errorf("%w: no client holds any data", common.ErrConfiguration)
	}

	orch.calculateDatasetBasedScores(numClasses(deps.Shards, deps.HeldOut))

	if cfg.Checkpoint.Schedule != "" {
		if orch.checkpointStore == nil {
			return nil, fmt.Errorf("%w: checkpoint schedule set without a checkpoint store", common.ErrConfiguration)
		}
		orch.scheduler, err = checkpoint.NewScheduler(cfg.Checkpoint.Schedule, orch.checkpointStore,
			checkpointPathWithSuffix(cfg.OutputPath, "latest"), orch.snapshot, orch.logger)
		if err != nil {
			return nil, err
		}
		orch.scheduler.OnSaved(func() {
			orch.metrics.RecordCheckpointWritten(metrics.CheckpointPeriodic)
		})
	}

	orch.resultsFileName = cfg.MetricsLogPath
	if orch.resultsFileName == "" {
		orch.resultsFileName = getResultsFileName("results", runId)
	}

	return orch, nil
}

func (orch *FlOrchestrator) RunId() string {
	return orch.runId
}

// Start runs all rounds in the background. Use Wait for the outcome and Stop
// to end the run early.
func (orch *FlOrchestrator) Start(ctx context.Context) error {
	runCtx, err := orch.begin(ctx)
	if err != nil {
		return err
	}

	go orch.run(runCtx)

	return nil
}

// Run runs all rounds and blocks until the run finishes.
func (orch *FlOrchestrator) Run(ctx context.Context) error {
	runCtx, err := orch.begin(ctx)
	if err != nil {
		return err
	}

	orch.run(runCtx)

	return orch.Wait()
}

// Wait blocks until a started run has finished and returns its error.
func (orch *FlOrchestrator) Wait() error {
	orch.mu.RLock()
	done := orch.done
	orch.mu.RUnlock()
	if done == nil {
		return common.ErrNotRunning
	}

	<-done

	orch.mu.RLock()
	defer orch.mu.RUnlock()
	return orch.runErr
}

// Stop abandons the round in flight and ends the run. The global model keeps
// the state of the last completed round.
func (orch *FlOrchestrator) Stop() error {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	if orch.cancel == nil || orch.state == Done_FlState {
		return common.ErrNotRunning
	}
	orch.stopRequested = true
	orch.cancel()

	return nil
}

func (orch *FlOrchestrator) begin(ctx context.Context) (context.Context, error) {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	if orch.started {
		return nil, common.ErrAlreadyRunning
	}
	orch.started = true

	runCtx, cancel := context.WithCancel(ctx)
	orch.cancel = cancel
	orch.done = make(chan struct{})

	return runCtx, nil
}

func (orch *FlOrchestrator) run(ctx context.Context) {
	orch.printConfiguration()
	orch.logger.Info(fmt.Sprintf("Cost per global round: %.4f MB",
		cost.GetGlobalRoundCost(orch.modelSizeMB, orch.numSelected(), len(orch.clients))))

	if orch.scheduler != nil {
		orch.scheduler.Start()
	}

	exitCode := common.FL_EXIT_COMPLETED
	exitMessage := fmt.Sprintf("Completed %d rounds", orch.config.Rounds)
	var runErr error

	for roundIndex := 0; roundIndex < orch.config.Rounds; roundIndex++ {
		record, err := orch.RunRound(ctx, roundIndex)
		if err != nil {
			if ctx.Err() != nil {
				exitCode = common.FL_EXIT_STOPPED
				exitMessage = fmt.Sprintf("Stopped during round %d", roundIndex)
				if !orch.isStopRequested() {
					runErr = err
				}
			} else {
				exitCode = common.FL_EXIT_FAILED
				exitMessage = err.Error()
				runErr = err
			}
			break
		}

		if stop, reason := orch.updateProgress(record); stop {
			exitMessage = reason
			break
		}
	}

	if orch.scheduler != nil {
		orch.scheduler.Stop()
	}

	if err := orch.saveFinalModel(); err != nil {
		orch.logger.Error(fmt.Sprintf("Error while saving the final model: %s", err.Error()))
		if runErr == nil {
			runErr = err
			exitCode = common.FL_EXIT_FAILED
			exitMessage = err.Error()
		}
	}

	orch.logger.Info(fmt.Sprintf("FL finished! Exit message: %s", exitMessage))

	orch.mu.Lock()
	orch.state = Done_FlState
	orch.runErr = runErr
	orch.exitMessage = exitMessage
	rounds := len(orch.history)
	orch.cancel()
	orch.mu.Unlock()

	orch.publish(common.FL_FINISHED_EVENT_TYPE, events.FlFinishedEvent{
		RunId:       orch.runId,
		ExitCode:    int32(exitCode),
		ExitMessage: exitMessage,
		Rounds:      rounds,
	})
	close(orch.done)
}

// RunRound executes one synchronous round: select, train the selected clients
// in parallel on private snapshots, aggregate the survivors, evaluate and
// commit. On any error the global model is left unchanged.
func (orch *FlOrchestrator) RunRound(ctx context.Context, roundIndex int) (*model.RoundRecord, error) {
	orch.roundMu.Lock()
	defer orch.roundMu.Unlock()

	if !orch.setState(RoundInProgress_FlState) {
		return nil, common.ErrNotRunning
	}
	defer orch.setState(Idle_FlState)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("round %d not started: %w", roundIndex, err)
	}

	startTime := time.Now()

	selected, err := selectFromPool(orch.rng, orch.eligible, orch.config.ClientFraction)
	if err != nil {
		orch.metrics.RecordRoundFailed(metrics.ReasonNoClients)
		return nil, err
	}
	orch.logger.Info(fmt.Sprintf("Round %d - Selected clients: %s", roundIndex, common.FormatClientIds(selected)))

	roundCtx := ctx
	if timeout := orch.config.RoundTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	updates, excluded := orch.trainSelected(roundCtx, roundIndex, selected)

	if ctx.Err() != nil {
		orch.metrics.RecordRoundFailed(metrics.ReasonCancelled)
		orch.logger.Warn(fmt.Sprintf("Round %d abandoned", roundIndex))
		return nil, fmt.Errorf("round %d abandoned: %w", roundIndex, ctx.Err())
	}

	if len(updates) == 0 {
		orch.metrics.RecordRoundFailed(metrics.ReasonNoClients)
		return nil, fmt.Errorf("%w: round %d: all %d selected clients were excluded", common.ErrRoundFailed,
			roundIndex, len(selected))
	}

	weights, err := orch.aggregationWeights(updates)
	if err != nil {
		orch.metrics.RecordRoundFailed(metrics.ReasonAggregate)
		return nil, err
	}

	params := make([]*model.ParameterStore, len(updates))
	for i, update := range updates {
		params[i] = update.Params
	}

	aggregated, err := Aggregate(orch.global, params, weights)
	if err != nil {
		orch.metrics.RecordRoundFailed(metrics.ReasonAggregate)
		orch.logger.Error(fmt.Sprintf("Round %d - Aggregation failed: %s", roundIndex, err.Error()))
		return nil, err
	}

	result, err := orch.evaluator.Evaluate(aggregated, orch.heldOut)
	if err != nil {
		orch.metrics.RecordRoundFailed(metrics.ReasonEvaluation)
		return nil, err
	}

	record := model.RoundRecord{
		RoundIndex:        roundIndex,
		SelectedClientIDs: selected,
		ExcludedClients:   excluded,
		ClientLosses:      make(map[int]float64, len(updates)),
		Weights:           make(map[int]float64, len(updates)),
		GlobalAccuracy:    result.AccuracyPercent,
		GlobalLoss:        result.MeanLoss,
		MeanInferenceTime: result.MeanInferenceTime,
		CommunicationCost: cost.GetGlobalRoundCost(orch.modelSizeMB, len(selected), len(orch.clients)),
	}
	for i, update := range updates {
		record.ParticipatingClientIDs = append(record.ParticipatingClientIDs, update.ClientID)
		record.ClientLosses[update.ClientID] = update.Loss
		record.Weights[update.ClientID] = weights[i]
	}
	record.Duration = time.Since(startTime)
	record.CompletedAt = time.Now()

	orch.mu.Lock()
	orch.global = aggregated
	for _, client := range orch.clients {
		client.LocalParams = aggregated.Clone()
	}
	orch.history = append(orch.history, record)
	orch.mu.Unlock()

	orch.logger.Info(fmt.Sprintf("Round %d - Global Model Accuracy: %.2f%%, Loss: %.4f, Inference Time: %.6f s",
		roundIndex, result.AccuracyPercent, result.MeanLoss, result.MeanInferenceTime.Seconds()))

	orch.metrics.RecordRoundCompleted(roundIndex, result.AccuracyPercent, result.MeanLoss, record.Duration)
	orch.metrics.RecordCommunicationCost(record.CommunicationCost)

	if orch.config.EvaluateClients {
		orch.evaluateClients(ctx, aggregated)
	}

	orch.publish(common.ROUND_COMPLETED_EVENT_TYPE, events.RoundCompletedEvent{RunId: orch.runId, Record: record})

	if orch.config.Checkpoint.EveryRound && orch.checkpointStore != nil {
		path := checkpointPathWithSuffix(orch.config.OutputPath, fmt.Sprintf("round_%d", roundIndex))
		if err := orch.saveCheckpoint(aggregated, path, metrics.CheckpointRound); err != nil {
			orch.logger.Warn(fmt.Sprintf("Round %d - Checkpoint failed: %s", roundIndex, err.Error()))
		}
	}

	return &record, nil
}

func (orch *FlOrchestrator) trainSelected(ctx context.Context, roundIndex int, selected []int) ([]*model.ClientUpdate,
	map[int]string) {
	results := make([]*model.ClientUpdate, len(selected))
	errs := make([]error, len(selected))

	limit := orch.config.MaxParallelClients
	if limit <= 0 || limit > len(selected) {
		limit = len(selected)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, clientId := range selected {
		client := orch.clients[clientId]
		task := &model.TrainTask{
			Round:        roundIndex,
			ClientID:     clientId,
			Params:       client.LocalParams.Clone(),
			Epochs:       orch.config.LocalEpochs,
			LearningRate: client.LearningRate,
		}

		g.Go(func() error {
			results[i], errs[i] = orch.runtime.TrainClient(ctx, task)
			if errs[i] == nil {
				errs[i] = checkUpdate(task, results[i])
			}
			return nil
		})
	}
	g.Wait()

	updates := []*model.ClientUpdate{}
	excluded := map[int]string{}
	for i, clientId := range selected {
		if errs[i] == nil {
			updates = append(updates, results[i])
			continue
		}

		reason := exclusionReason(errs[i])
		excluded[clientId] = reason
		orch.metrics.RecordClientExcluded(reason)
		orch.logger.Warn(fmt.Sprintf("Round %d - Client %d excluded (%s): %s", roundIndex, clientId, reason,
			errs[i].Error()))
	}

	return updates, excluded
}

func checkUpdate(task *model.TrainTask, update *model.ClientUpdate) error {
	switch {
	case update == nil || update.Params == nil:
		return fmt.Errorf("client %d returned no parameters", task.ClientID)
	case update.ClientID != task.ClientID || update.Round != task.Round:
		return fmt.Errorf("client %d returned an update for client %d round %d", task.ClientID, update.ClientID,
			update.Round)
	}
	return nil
}

func exclusionReason(err error) string {
	switch {
	case errors.Is(err, common.ErrEmptyShard):
		return metrics.ReasonEmptyShard
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.ReasonTimeout
	default:
		return metrics.ReasonError
	}
}

func (orch *FlOrchestrator) aggregationWeights(updates []*model.ClientUpdate) ([]float64, error) {
	if orch.config.Weighting == common.WEIGHTING_SAMPLES {
		numSamples := make([]int, len(updates))
		for i, update := range updates {
			numSamples[i] = update.NumSamples
		}
		return SampleWeights(numSamples)
	}
	return UniformWeights(len(updates)), nil
}

func (orch *FlOrchestrator) evaluateClients(ctx context.Context, params *model.ParameterStore) {
	var g errgroup.Group
	if orch.config.MaxParallelClients > 0 {
		g.SetLimit(orch.config.MaxParallelClients)
	}

	for _, client := range orch.clients {
		if client.Shard.Len() == 0 {
			continue
		}
		task := &model.EvaluateTask{ClientID: client.ClientID, Params: params.Clone()}

		g.Go(func() error {
			evaluation, err := orch.runtime.EvaluateClient(ctx, task)
			if err != nil {
				orch.logger.Warn(fmt.Sprintf("Client %d - Local evaluation failed: %s", task.ClientID, err.Error()))
				return nil
			}
			orch.logger.Info(fmt.Sprintf("Client %d - Local Accuracy: %.2f%%, Loss: %.4f", task.ClientID,
				evaluation.Accuracy*100, evaluation.Loss))
			return nil
		})
	}
	g.Wait()
}

func (orch *FlOrchestrator) updateProgress(record *model.RoundRecord) (bool, string) {
	orch.mu.Lock()
	progress := orch.progress
	progress.globalRound = record.RoundIndex + 1
	progress.accuracies = append(progress.accuracies, record.GlobalAccuracy)
	progress.losses = append(progress.losses, record.GlobalLoss)
	progress.inferenceTimes = append(progress.inferenceTimes, record.MeanInferenceTime)
	progress.costPerGlobalRound = record.CommunicationCost
	progress.currentCost += record.CommunicationCost
	wasConverged := progress.accuracyHasConverged
	progress.accuracyHasConverged = hasConverged(progress.accuracies, 0.1, 5, 3)
	snapshot := progress.clone()
	orch.mu.Unlock()

	orch.logger.Info(fmt.Sprintf("Current total cost: %.4f MB", snapshot.currentCost))
	if snapshot.accuracyHasConverged && !wasConverged {
		orch.logger.Info("Accuracy has converged!")
	}

	orch.logPrediction(snapshot)

	if err := writeResultsToFile(orch.resultsFileName, record.RoundIndex, record.GlobalAccuracy, record.GlobalLoss,
		record.MeanInferenceTime, snapshot.currentCost); err != nil {
		orch.logger.Warn(fmt.Sprintf("Error while writing results to %s: %s", orch.resultsFileName, err.Error()))
	}

	stop, reason := orch.config.Cost.ShouldStop(snapshot.currentCost, record.GlobalAccuracy)
	if stop {
		orch.logger.Info(reason)
	}
	return stop, reason
}

func (orch *FlOrchestrator) numSelected() int {
	return max(1, int(math.Floor(float64(len(orch.eligible))*orch.config.ClientFraction)))
}

func (orch *FlOrchestrator) saveFinalModel() error {
	if orch.checkpointStore == nil {
		return nil
	}
	return orch.saveCheckpoint(orch.GlobalParams(), orch.config.OutputPath, metrics.CheckpointFinal)
}

func (orch *FlOrchestrator) saveCheckpoint(params *model.ParameterStore, path string, kind string) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointSaveTimeout)
	defer cancel()

	if err := orch.checkpointStore.Save(ctx, params, path); err != nil {
		return err
	}
	orch.metrics.RecordCheckpointWritten(kind)
	return nil
}

func (orch *FlOrchestrator) snapshot() (*model.ParameterStore, int) {
	orch.mu.RLock()
	defer orch.mu.RUnlock()
	return orch.global.Clone(), len(orch.history)
}

func (orch *FlOrchestrator) publish(eventType string, data interface{}) {
	if orch.eventBus == nil {
		return
	}
	orch.eventBus.Publish(events.Event{Type: eventType, Data: data})
}

// setState moves to state unless the run is already done.
func (orch *FlOrchestrator) setState(state FlState) bool {
	orch.mu.Lock()
	defer orch.mu.Unlock()
	if orch.state == Done_FlState {
		return false
	}
	orch.state = state
	return true
}

func (orch *FlOrchestrator) isStopRequested() bool {
	orch.mu.RLock()
	defer orch.mu.RUnlock()
	return orch.stopRequested
}

// GlobalParams returns a copy of the current global model.
func (orch *FlOrchestrator) GlobalParams() *model.ParameterStore {
	params, _ := orch.snapshot()
	return params
}

// History returns a copy of the committed round records.
func (orch *FlOrchestrator) History() []model.RoundRecord {
	orch.mu.RLock()
	defer orch.mu.RUnlock()
	return slices.Clone(orch.history)
}

func (orch *FlOrchestrator) State() FlState {
	orch.mu.RLock()
	defer orch.mu.RUnlock()
	return orch.state
}

func (orch *FlOrchestrator) Status() FlStatus {
	orch.mu.RLock()
	defer orch.mu.RUnlock()

	status := FlStatus{
		RunId:           orch.runId,
		State:           orch.state.String(),
		CompletedRounds: len(orch.history),
		TotalRounds:     orch.config.Rounds,
		CurrentCost:     orch.progress.currentCost,
		Converged:       orch.progress.accuracyHasConverged,
		ExitMessage:     orch.exitMessage,
	}
	if n := len(orch.history); n > 0 {
		status.LastAccuracy = orch.history[n-1].GlobalAccuracy
		status.LastLoss = orch.history[n-1].GlobalLoss
	}
	if orch.runErr != nil {
		status.Error = orch.runErr.Error()
	}

	return status
}

func checkpointPathWithSuffix(path string, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}

func shortRunId(runId string) string {
	if len(runId) > 8 {
		return runId[:8]
	}
	return runId
}

func numClasses(shards []*model.Shard, heldOut model.Dataset) int {
	classes := heldOut.NumClasses()
	for _, shard := range shards {
		for _, sample := range shard.Samples {
			classes = max(classes, sample.Label+1)
		}
	}
	return classes
}
