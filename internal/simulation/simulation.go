package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/checkpoint"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/events"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

type Options struct {
	Logger   hclog.Logger
	Metrics  metrics.Collector
	EventBus *events.EventBus
	RunId    string
}

// Simulation is a fully wired run together with the resources it owns.
type Simulation struct {
	Orchestrator *florch.FlOrchestrator
	Data         *Data

	closers []func() error
}

// Build prepares the data, client runtime and checkpoint store described by
// cfg and returns an orchestrator ready to start. Close releases everything
// Build acquired.
func Build(ctx context.Context, cfg *flconfig.FlConfiguration, opts Options) (*Simulation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	sim := &Simulation{}
	ok := false
	defer func() {
		if !ok {
			sim.Close()
		}
	}()

	cfg.ResolveDevice(logger)

	data, err := PrepareData(cfg, logger)
	if err != nil {
		return nil, err
	}
	sim.Data = data

	runtime, err := sim.newRuntime(cfg, data, logger)
	if err != nil {
		return nil, err
	}
	sim.onClose(runtime.Close)

	store, err := sim.newCheckpointStore(cfg, data.Architecture.Name(), logger)
	if err != nil {
		return nil, err
	}

	deps := florch.Dependencies{
		Architecture:    data.Architecture,
		Runtime:         runtime,
		Shards:          data.Shards,
		HeldOut:         data.HeldOut,
		CheckpointStore: store,
		Metrics:         opts.Metrics,
		EventBus:        opts.EventBus,
		Logger:          logger,
		RunId:           opts.RunId,
	}

	if cfg.Checkpoint.ResumeFrom != "" {
		deps.InitialParams, err = store.Load(ctx, cfg.Checkpoint.ResumeFrom, data.Architecture.Schema())
		if err != nil {
			return nil, err
		}
		logger.Info(fmt.Sprintf("Resuming from checkpoint %s", cfg.Checkpoint.ResumeFrom))
	}

	sim.Orchestrator, err = florch.NewFlOrchestrator(deps, cfg)
	if err != nil {
		return nil, err
	}

	ok = true
	return sim, nil
}

func (sim *Simulation) newRuntime(cfg *flconfig.FlConfiguration, data *Data, logger hclog.Logger) (contorch.IClientRuntime, error) {
	if cfg.Transport.Type == common.TRANSPORT_NATS {
		return sim.newNatsRuntime(cfg, data, logger)
	}
	return NewLocalRuntime(cfg, data.Architecture, data.Shards, logger)
}

func (sim *Simulation) newCheckpointStore(cfg *flconfig.FlConfiguration, architecture string,
	logger hclog.Logger) (checkpoint.Store, error) {
	if cfg.Checkpoint.Backend != common.CHECKPOINT_BACKEND_REDIS {
		return checkpoint.NewFileStore(architecture, logger.Named("checkpoint")), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Checkpoint.RedisAddr})
	sim.onClose(client.Close)

	return checkpoint.NewRedisStore(client, cfg.Checkpoint.RedisPrefix, architecture, logger.Named("checkpoint")), nil
}

func (sim *Simulation) onClose(fn func() error) {
	sim.closers = append(sim.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (sim *Simulation) Close() error {
	var errs []error
	for i := len(sim.closers) - 1; i >= 0; i-- {
		if err := sim.closers[i](); err != nil && !errors.Is(err, common.ErrNotRunning) {
			errs = append(errs, err)
		}
	}
	sim.closers = nil
	return errors.Join(errs...)
}
