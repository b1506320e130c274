package natsrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
)

// Worker serves the clients of a local runtime over NATS.
type Worker struct {
	conn        *nats.Conn
	runtime     contorch.IClientRuntime
	taskTimeout time.Duration
	logger      hclog.Logger

	mu            sync.Mutex
	subscriptions []*nats.Subscription

	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc
}

func NewWorker(conn *nats.Conn, runtime contorch.IClientRuntime, taskTimeout time.Duration, logger hclog.Logger) *Worker {
	return &Worker{
		conn:        conn,
		runtime:     runtime,
		taskTimeout: taskTimeout,
		logger:      logger,
		inflight:    map[string]context.CancelFunc{},
	}
}

// Start subscribes the train and evaluate subjects of every hosted client.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subscriptions) > 0 {
		return common.ErrAlreadyRunning
	}

	cancelSub, err := w.conn.Subscribe(common.CLIENT_CANCEL_SUBJECT, w.handleCancel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", common.CLIENT_CANCEL_SUBJECT, err)
	}
	w.subscriptions = append(w.subscriptions, cancelSub)

	for _, clientId := range w.runtime.ClientIds() {
		trainSub, err := w.conn.Subscribe(common.GetClientTrainSubject(clientId), w.handleTrain)
		if err != nil {
			w.unsubscribeAll()
			return fmt.Errorf("subscribe client %d: %w", clientId, err)
		}
		evaluateSub, err := w.conn.Subscribe(common.GetClientEvaluateSubject(clientId), w.handleEvaluate)
		if err != nil {
			trainSub.Unsubscribe()
			w.unsubscribeAll()
			return fmt.Errorf("subscribe client %d: %w", clientId, err)
		}
		w.subscriptions = append(w.subscriptions, trainSub, evaluateSub)
	}

	if err := w.conn.Flush(); err != nil {
		w.unsubscribeAll()
		return fmt.Errorf("flush subscriptions: %w", err)
	}

	w.logger.Info(fmt.Sprintf("Worker serving clients %s", common.FormatClientIds(w.runtime.ClientIds())))
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subscriptions) == 0 {
		return common.ErrNotRunning
	}
	w.unsubscribeAll()
	return nil
}

func (w *Worker) unsubscribeAll() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			w.logger.Warn("Error unsubscribing", "subject", sub.Subject, "error", err)
		}
	}
	w.subscriptions = nil
}

func (w *Worker) handleTrain(msg *nats.Msg) {
	task := &model.TrainTask{}
	if err := json.Unmarshal(msg.Data, task); err != nil {
		w.respond(msg, errorReply(fmt.Errorf("%w: decode train task: %s", common.ErrConfiguration, err.Error())))
		return
	}

	ctx, cancel := w.taskContext(msg)
	defer cancel()

	update, err := w.runtime.TrainClient(ctx, task)
	if err != nil {
		w.logger.Warn("Client training failed", "client", task.ClientID, "round", task.Round, "error", err)
		w.respond(msg, errorReply(err))
		return
	}
	w.respond(msg, reply{Update: update})
}

func (w *Worker) handleEvaluate(msg *nats.Msg) {
	task := &model.EvaluateTask{}
	if err := json.Unmarshal(msg.Data, task); err != nil {
		w.respond(msg, errorReply(fmt.Errorf("%w: decode evaluate task: %s", common.ErrConfiguration, err.Error())))
		return
	}

	ctx, cancel := w.taskContext(msg)
	defer cancel()

	evaluation, err := w.runtime.EvaluateClient(ctx, task)
	if err != nil {
		w.respond(msg, errorReply(err))
		return
	}
	w.respond(msg, reply{Evaluation: evaluation})
}

// taskContext bounds a task by the worker's own timeout and the time the
// coordinator is still waiting, and registers it for remote cancellation.
func (w *Worker) taskContext(msg *nats.Msg) (context.Context, context.CancelFunc) {
	timeout := w.taskTimeout
	if msg.Header != nil {
		if remaining, err := time.ParseDuration(msg.Header.Get(requestTimeoutHeader)); err == nil {
			if timeout <= 0 || remaining < timeout {
				timeout = max(remaining, time.Millisecond)
			}
		}
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	requestId := ""
	if msg.Header != nil {
		requestId = msg.Header.Get(requestIdHeader)
	}
	if requestId == "" {
		return ctx, cancel
	}

	w.inflightMu.Lock()
	w.inflight[requestId] = cancel
	w.inflightMu.Unlock()

	return ctx, func() {
		w.inflightMu.Lock()
		delete(w.inflight, requestId)
		w.inflightMu.Unlock()
		cancel()
	}
}

func (w *Worker) handleCancel(msg *nats.Msg) {
	requestId := string(msg.Data)

	w.inflightMu.Lock()
	cancel, found := w.inflight[requestId]
	w.inflightMu.Unlock()

	if found {
		w.logger.Debug("Cancelling client task", "requestId", requestId)
		cancel()
	}
}

func (w *Worker) respond(msg *nats.Msg, resp reply) {
	data, err := json.Marshal(resp)
	if err != nil {
		w.logger.Error("Error encoding reply", "subject", msg.Subject, "error", err)
		data, _ = json.Marshal(errorReply(err))
	}

	out := nats.NewMsg(msg.Reply)
	out.Data = data
	if msg.Header != nil {
		out.Header.Set(requestIdHeader, msg.Header.Get(requestIdHeader))
	}
	if err := msg.RespondMsg(out); err != nil {
		w.logger.Error("Error sending reply", "subject", msg.Subject, "error", err)
	}
}
