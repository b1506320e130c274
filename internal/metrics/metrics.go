package metrics

import "time"

// Collector receives round-level measurements from the orchestrator.
type Collector interface {
	RecordRoundCompleted(round int, accuracyPercent float64, loss float64, duration time.Duration)
	RecordRoundFailed(reason string)
	RecordClientExcluded(reason string)
	RecordCommunicationCost(megabytes float64)
	RecordCheckpointWritten(kind string)
}

// Exclusion and failure reasons
const (
	ReasonEmptyShard = "empty_shard"
	ReasonTimeout    = "timeout"
	ReasonError      = "error"
	ReasonNoClients  = "no_clients"
	ReasonAggregate  = "aggregation"
	ReasonEvaluation = "evaluation"
	ReasonCancelled  = "cancelled"
)

// Checkpoint kinds
const (
	CheckpointRound    = "round"
	CheckpointPeriodic = "periodic"
	CheckpointFinal    = "final"
)
