package natsrt

import (
	"context"
	"errors"
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

const requestIdHeader = "Fl-Request-Id"

// requestTimeoutHeader carries the time left until the coordinator gives up
// on a request, as a Go duration string.
const requestTimeoutHeader = "Fl-Request-Timeout"

// Error codes carried in replies so the coordinator can restore sentinel errors.
const (
	codeEmptyShard     = "empty_shard"
	codeUnknownClient  = "unknown_client"
	codeSchemaMismatch = "schema_mismatch"
	codeConfiguration  = "configuration"
	codeTimeout        = "timeout"
	codeCancelled      = "cancelled"
	codeInternal       = "internal"
)

type reply struct {
	Update     *model.ClientUpdate     `json:"update,omitempty"`
	Evaluation *model.ClientEvaluation `json:"evaluation,omitempty"`
	Code       string                  `json:"code,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func errorReply(err error) reply {
	code := codeInternal
	switch {
	case errors.Is(err, common.ErrEmptyShard):
		code = codeEmptyShard
	case errors.Is(err, common.ErrClientUnknown):
		code = codeUnknownClient
	case errors.Is(err, common.ErrSchemaMismatch):
		code = codeSchemaMismatch
	case errors.Is(err, common.ErrConfiguration):
		code = codeConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		code = codeTimeout
	case errors.Is(err, context.Canceled):
		code = codeCancelled
	}
	return reply{Code: code, Error: err.Error()}
}

func (r reply) err() error {
	var sentinel error
	switch r.Code {
	case "":
		return nil
	case codeEmptyShard:
		sentinel = common.ErrEmptyShard
	case codeUnknownClient:
		sentinel = common.ErrClientUnknown
	case codeSchemaMismatch:
		sentinel = common.ErrSchemaMismatch
	case codeConfiguration:
		sentinel = common.ErrConfiguration
	case codeTimeout:
		sentinel = context.DeadlineExceeded
	case codeCancelled:
		sentinel = context.Canceled
	default:
		return fmt.Errorf("remote client error: %s", r.Error)
	}
	return fmt.Errorf("remote client error: %s: %w", r.Error, sentinel)
}
