package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// SnapshotFunc returns a private copy of the current global parameters and
// the number of rounds they reflect.
type SnapshotFunc func() (*model.ParameterStore, int)

// Scheduler periodically saves the global model while a run is in progress.
// A tick is skipped when no round completed since the previous save.
type Scheduler struct {
	store         Store
	path          string
	snapshot      SnapshotFunc
	logger        hclog.Logger
	cronScheduler *cron.Cron
	onSaved       func()

	mu        sync.Mutex
	lastRound int
}

func NewScheduler(schedule string, store Store, path string, snapshot SnapshotFunc, logger hclog.Logger) (*Scheduler, error) {
	sched := &Scheduler{
		store:         store,
		path:          path,
		snapshot:      snapshot,
		logger:        logger,
		cronScheduler: cron.New(cron.WithSeconds()),
		lastRound:     -1,
	}

	if _, err := sched.cronScheduler.AddFunc(schedule, sched.saveSnapshot); err != nil {
		return nil, fmt.Errorf("%w: invalid checkpoint schedule %q: %s", common.ErrConfiguration, schedule, err.Error())
	}

	return sched, nil
}

// OnSaved registers a callback invoked after every successful periodic save.
func (sched *Scheduler) OnSaved(fn func()) {
	sched.onSaved = fn
}

func (sched *Scheduler) Start() {
	sched.cronScheduler.Start()
}

// Stop halts the schedule and waits for a running save to finish.
func (sched *Scheduler) Stop() {
	<-sched.cronScheduler.Stop().Done()
}

func (sched *Scheduler) saveSnapshot() {
	params, rounds := sched.snapshot()
	if params == nil {
		return
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if rounds == sched.lastRound {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.store.Save(ctx, params, sched.path); err != nil {
		sched.logger.Error("Periodic checkpoint failed", "path", sched.path, "error", err)
		return
	}
	sched.lastRound = rounds
	sched.logger.Debug("Periodic checkpoint written", "path", sched.path, "rounds", rounds)

	if sched.onSaved != nil {
		sched.onSaved()
	}
}
