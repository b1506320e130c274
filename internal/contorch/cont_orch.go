package contorch

import (
	"context"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// IClientRuntime executes client work on behalf of the coordinator. Each call
// receives a private parameter snapshot and returns the client's result, so
// the coordinator's global store is never shared with a runtime.
//
// TrainClient and EvaluateClient must return promptly once ctx is done: the
// round barrier waits for every call, so the round timeout only holds for
// runtimes that honour ctx. Remote runtimes must also propagate the deadline
// and cancellation to wherever the work runs.
type IClientRuntime interface {
	TrainClient(ctx context.Context, task *model.TrainTask) (*model.ClientUpdate, error)
	EvaluateClient(ctx context.Context, task *model.EvaluateTask) (*model.ClientEvaluation, error)
	ClientIds() []int
	Close() error
}
