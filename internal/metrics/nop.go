package metrics

import "time"

// NopMetrics discards every measurement.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordRoundCompleted(_ int, _ float64, _ float64, _ time.Duration) {}

func (n *NopMetrics) RecordRoundFailed(_ string) {}

func (n *NopMetrics) RecordClientExcluded(_ string) {}

func (n *NopMetrics) RecordCommunicationCost(_ float64) {}

func (n *NopMetrics) RecordCheckpointWritten(_ string) {}
