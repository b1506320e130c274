package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports round metrics through a Prometheus registerer.
// One collector is meant to be shared by every run of a process.
type PrometheusCollector struct {
	roundsCompleted   prometheus.Counter
	roundsFailed      *prometheus.CounterVec
	clientsExcluded   *prometheus.CounterVec
	globalAccuracy    prometheus.Gauge
	globalLoss        prometheus.Gauge
	lastRound         prometheus.Gauge
	roundDuration     prometheus.Histogram
	communicationCost prometheus.Counter
	checkpoints       *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus registers the collector's metrics with reg
// (prometheus.DefaultRegisterer if nil) under namespace ("flsim" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "flsim"
	}

	p := &PrometheusCollector{
		roundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "completed_total",
			Help:      "Total federated rounds committed to the global model.",
		}),
		roundsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "failed_total",
			Help:      "Total rounds abandoned without changing the global model, by reason.",
		}, []string{"reason"}),
		clientsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "excluded_total",
			Help:      "Total selected clients excluded from a round, by reason.",
		}, []string{"reason"}),
		globalAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "global",
			Name:      "accuracy_percent",
			Help:      "Held-out accuracy of the latest global model.",
		}),
		globalLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "global",
			Name:      "loss",
			Help:      "Held-out mean loss of the latest global model.",
		}),
		lastRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "last_index",
			Help:      "Index of the most recently committed round.",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of committed rounds in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		communicationCost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "communication",
			Name:      "megabytes_total",
			Help:      "Estimated model traffic between coordinator and clients in megabytes.",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoints",
			Name:      "written_total",
			Help:      "Total checkpoints written, by kind (round, periodic, final).",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		p.roundsCompleted, p.roundsFailed, p.clientsExcluded, p.globalAccuracy, p.globalLoss,
		p.lastRound, p.roundDuration, p.communicationCost, p.checkpoints,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *PrometheusCollector) RecordRoundCompleted(round int, accuracyPercent float64, loss float64, duration time.Duration) {
	p.roundsCompleted.Inc()
	p.lastRound.Set(float64(round))
	p.globalAccuracy.Set(accuracyPercent)
	p.globalLoss.Set(loss)
	p.roundDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordRoundFailed(reason string) {
	p.roundsFailed.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordClientExcluded(reason string) {
	p.clientsExcluded.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordCommunicationCost(megabytes float64) {
	p.communicationCost.Add(megabytes)
}

func (p *PrometheusCollector) RecordCheckpointWritten(kind string) {
	p.checkpoints.WithLabelValues(kind).Inc()
}
