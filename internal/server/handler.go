package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/events"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch/flconfig"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/metrics"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/simulation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// DEFAULT_RUN_RETENTION is how long a finished run stays queryable.
const DEFAULT_RUN_RETENTION = time.Hour

const finishedEventsBuffer = 64

type Handler struct {
	logger   hclog.Logger
	eventBus *events.EventBus
	metrics  metrics.Collector

	finished  chan events.Event
	stopWatch chan struct{}
	watchDone chan struct{}
	stopOnce  sync.Once

	mu        sync.RWMutex
	retention time.Duration
	runs      map[string]*flRun
}

type flRun struct {
	sim        *simulation.Simulation
	released   bool
	finishedAt time.Time
}

// NewHandler subscribes to FL_FINISHED_EVENT_TYPE on eventBus. Finished runs
// are released when their event arrives and evicted after the retention period.
func NewHandler(logger hclog.Logger, eventBus *events.EventBus, collector metrics.Collector) *Handler {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	handler := &Handler{
		logger:    logger,
		eventBus:  eventBus,
		metrics:   collector,
		finished:  make(chan events.Event, finishedEventsBuffer),
		stopWatch: make(chan struct{}),
		watchDone: make(chan struct{}),
		retention: DEFAULT_RUN_RETENTION,
		runs:      map[string]*flRun{},
	}

	eventBus.Subscribe(common.FL_FINISHED_EVENT_TYPE, handler.finished)
	go handler.watchFinishedRuns()

	return handler
}

func (handler *Handler) SetRunRetention(retention time.Duration) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.retention = retention
}

func (handler *Handler) StartFl(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	runId := uuid.New().String()

	request := &StartFlRequest{Configuration: *flconfig.DecodeTarget()}
	err := fromJSON(request, r.Body)
	if err != nil {
		handler.logger.Error("error starting FL", "error", err)
		writeError(rw, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := &request.Configuration
	cfg.ResolveDerived()
	if err := cfg.Validate(); err != nil {
		handler.logger.Error("error starting FL", "error", err)
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	sim, err := simulation.Build(r.Context(), cfg, simulation.Options{
		Logger:   handler.logger.Named(fmt.Sprintf("run-%s", runId[:8])),
		Metrics:  handler.metrics,
		EventBus: handler.eventBus,
		RunId:    runId,
	})
	if err != nil {
		handler.logger.Error("error starting FL", "error", err)
		writeError(rw, statusForError(err), err.Error())
		return
	}

	handler.logger.Info(fmt.Sprintf("Starting FL run %s with %d clients, %d rounds and %s split", runId,
		cfg.NumClients, cfg.Rounds, cfg.DataSplit))

	handler.evictExpired(time.Now())

	// registered before Start so the finished event always finds the run
	handler.mu.Lock()
	handler.runs[runId] = &flRun{sim: sim}
	handler.mu.Unlock()

	if err := sim.Orchestrator.Start(context.Background()); err != nil {
		handler.mu.Lock()
		delete(handler.runs, runId)
		handler.mu.Unlock()
		sim.Close()
		handler.logger.Error("error starting FL", "error", err)
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(StartFlResponse{RunId: runId}, rw)
}

func (handler *Handler) StopFl(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	runId := getURLParameter(r, "runId")

	handler.logger.Info(fmt.Sprintf("Stopping FL with run ID: %s", runId))

	orch := handler.orchestrator(runId)
	if orch == nil {
		writeError(rw, http.StatusNotFound, "no run with the given ID")
		return
	}

	if err := orch.Stop(); err != nil {
		writeError(rw, http.StatusConflict, err.Error())
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(orch.Status(), rw)
}

func (handler *Handler) GetStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	orch := handler.orchestrator(getURLParameter(r, "runId"))
	if orch == nil {
		writeError(rw, http.StatusNotFound, "no run with the given ID")
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(orch.Status(), rw)
}

func (handler *Handler) GetHistory(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	orch := handler.orchestrator(getURLParameter(r, "runId"))
	if orch == nil {
		writeError(rw, http.StatusNotFound, "no run with the given ID")
		return
	}

	rw.WriteHeader(http.StatusOK)
	toJSON(orch.History(), rw)
}

func (handler *Handler) ListRuns(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")

	handler.mu.RLock()
	statuses := make([]florch.FlStatus, 0, len(handler.runs))
	for _, run := range handler.runs {
		statuses = append(statuses, run.sim.Orchestrator.Status())
	}
	handler.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].RunId < statuses[j].RunId
	})

	rw.WriteHeader(http.StatusOK)
	toJSON(statuses, rw)
}

// StopAll stops every run still in progress, waits for them to finish and
// releases their resources. The handler serves no new runs afterwards.
func (handler *Handler) StopAll() {
	handler.mu.RLock()
	running := make([]*florch.FlOrchestrator, 0, len(handler.runs))
	for _, run := range handler.runs {
		running = append(running, run.sim.Orchestrator)
	}
	handler.mu.RUnlock()

	for _, orch := range running {
		if err := orch.Stop(); err == nil {
			handler.logger.Info(fmt.Sprintf("Stopped FL run %s", orch.RunId()))
		}
		orch.Wait()
	}

	handler.stopOnce.Do(func() {
		close(handler.stopWatch)
		<-handler.watchDone
		handler.eventBus.Unsubscribe(common.FL_FINISHED_EVENT_TYPE, handler.finished)
	})

	for _, orch := range running {
		handler.release(orch.RunId())
	}
}

func (handler *Handler) watchFinishedRuns() {
	defer close(handler.watchDone)

	for {
		select {
		case event := <-handler.finished:
			finished, ok := event.Data.(events.FlFinishedEvent)
			if !ok {
				continue
			}

			switch finished.ExitCode {
			case common.FL_EXIT_FAILED:
				handler.logger.Error(fmt.Sprintf("FL run %s failed after %d rounds: %s", finished.RunId,
					finished.Rounds, finished.ExitMessage))
			default:
				handler.logger.Info(fmt.Sprintf("FL run %s finished after %d rounds: %s", finished.RunId,
					finished.Rounds, finished.ExitMessage))
			}

			handler.release(finished.RunId)
			handler.evictExpired(time.Now())
		case <-handler.stopWatch:
			return
		}
	}
}

// release frees the resources of a finished run. The run stays queryable
// until it is evicted.
func (handler *Handler) release(runId string) {
	handler.mu.Lock()
	run, found := handler.runs[runId]
	if !found || run.released {
		handler.mu.Unlock()
		return
	}
	run.released = true
	handler.mu.Unlock()

	// FlFinished is published just before the run goroutine returns
	run.sim.Orchestrator.Wait()
	if err := run.sim.Close(); err != nil {
		handler.logger.Warn(fmt.Sprintf("Error while releasing FL run %s", runId), "error", err)
	}

	handler.mu.Lock()
	run.finishedAt = time.Now()
	handler.mu.Unlock()
}

func (handler *Handler) evictExpired(now time.Time) {
	handler.mu.Lock()
	defer handler.mu.Unlock()

	for runId, run := range handler.runs {
		if run.released && !run.finishedAt.IsZero() && now.Sub(run.finishedAt) >= handler.retention {
			delete(handler.runs, runId)
			handler.logger.Debug(fmt.Sprintf("Evicted FL run %s", runId))
		}
	}
}

func (handler *Handler) orchestrator(runId string) *florch.FlOrchestrator {
	handler.mu.RLock()
	defer handler.mu.RUnlock()

	run, found := handler.runs[runId]
	if !found {
		return nil
	}
	return run.sim.Orchestrator
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrConfiguration),
		errors.Is(err, common.ErrCheckpointNotFound),
		errors.Is(err, common.ErrSchemaMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(rw http.ResponseWriter, status int, message string) {
	rw.WriteHeader(status)
	toJSON(ErrorResponse{Message: message}, rw)
}

func getURLParameter(r *http.Request, parameter string) string {
	vars := mux.Vars(r)
	id := vars[parameter]
	return id
}
