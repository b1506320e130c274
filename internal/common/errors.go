package common

import "errors"

// Sentinel errors shared by the coordinator, clients and storage layers.
var (
	// ErrConfiguration is returned for invalid run configuration. Fatal before any round runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyShard is returned when a client is asked to train on zero examples.
	ErrEmptyShard = errors.New("empty shard")

	// ErrAggregation is returned when client updates cannot be combined into a global store.
	ErrAggregation = errors.New("aggregation error")

	// ErrCheckpointNotFound is returned when a checkpoint path does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrSchemaMismatch is returned when parameter names or shapes differ from the architecture in use.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrRoundFailed is returned when no selected client returned an update.
	ErrRoundFailed = errors.New("round failed")

	// ErrClientUnknown is returned when a runtime does not host the requested client.
	ErrClientUnknown = errors.New("unknown client")

	// ErrAlreadyRunning is returned when Start is called on a running orchestrator.
	ErrAlreadyRunning = errors.New("orchestrator already running")

	// ErrNotRunning is returned when Stop is called on an orchestrator that is not running.
	ErrNotRunning = errors.New("orchestrator not running")
)
