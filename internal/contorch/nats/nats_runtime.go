package natsrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/contorch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
)

// NatsRuntime reaches clients hosted by remote workers through NATS
// request/reply on per-client subjects.
type NatsRuntime struct {
	conn           *nats.Conn
	clientIds      []int
	requestTimeout time.Duration
	logger         hclog.Logger
}

var _ contorch.IClientRuntime = (*NatsRuntime)(nil)

func NewNatsRuntime(conn *nats.Conn, clientIds []int, requestTimeout time.Duration, logger hclog.Logger) *NatsRuntime {
	return &NatsRuntime{
		conn:           conn,
		clientIds:      slices.Clone(clientIds),
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

func (rt *NatsRuntime) ClientIds() []int {
	return slices.Clone(rt.clientIds)
}

func (rt *NatsRuntime) TrainClient(ctx context.Context, task *model.TrainTask) (*model.ClientUpdate, error) {
	resp, err := rt.request(ctx, common.GetClientTrainSubject(task.ClientID), task)
	if err != nil {
		return nil, err
	}
	if resp.Update == nil {
		return nil, fmt.Errorf("client %d replied without an update", task.ClientID)
	}
	return resp.Update, nil
}

func (rt *NatsRuntime) EvaluateClient(ctx context.Context, task *model.EvaluateTask) (*model.ClientEvaluation, error) {
	resp, err := rt.request(ctx, common.GetClientEvaluateSubject(task.ClientID), task)
	if err != nil {
		return nil, err
	}
	if resp.Evaluation == nil {
		return nil, fmt.Errorf("client %d replied without an evaluation", task.ClientID)
	}
	return resp.Evaluation, nil
}

func (rt *NatsRuntime) request(ctx context.Context, subject string, payload interface{}) (*reply, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && rt.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.requestTimeout)
		defer cancel()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	requestId := uuid.New().String()
	msg := nats.NewMsg(subject)
	msg.Header.Set(requestIdHeader, requestId)
	if deadline, ok := ctx.Deadline(); ok {
		msg.Header.Set(requestTimeoutHeader, time.Until(deadline).String())
	}
	msg.Data = data

	rt.logger.Trace("Sending client request", "subject", subject, "requestId", requestId, "bytes", len(data))

	respMsg, err := rt.conn.RequestMsgWithContext(ctx, msg)
	if errors.Is(err, nats.ErrNoResponders) {
		return nil, fmt.Errorf("%w: no worker serves %s", common.ErrClientUnknown, subject)
	}
	if err != nil {
		if ctx.Err() != nil {
			rt.cancelRemote(requestId)
		}
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}

	resp := &reply{}
	if err := json.Unmarshal(respMsg.Data, resp); err != nil {
		return nil, fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	return resp, nil
}

// cancelRemote tells the worker running requestId to abandon it.
func (rt *NatsRuntime) cancelRemote(requestId string) {
	if err := rt.conn.Publish(common.CLIENT_CANCEL_SUBJECT, []byte(requestId)); err != nil {
		rt.logger.Warn("Error publishing cancellation", "requestId", requestId, "error", err)
	}
}

// Close does not close the connection, which belongs to the caller.
func (rt *NatsRuntime) Close() error {
	return nil
}
