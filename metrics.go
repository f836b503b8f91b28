package provisioner

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for saga executions.
type Metrics struct {
	sagaRuns     *prometheus.CounterVec
	sagaFailures *prometheus.CounterVec
	sagaDuration *prometheus.HistogramVec
	sweepRemoved *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sagaRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dx",
			Subsystem: "provisioning",
			Name:      "saga_runs_total",
			Help:      "Number of provisioning sagas run, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		sagaFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dx",
			Subsystem: "provisioning",
			Name:      "saga_step_failures_total",
			Help:      "Number of saga failures, by operation and failed step.",
		}, []string{"operation", "step", "index"}),
		sagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dx",
			Subsystem: "provisioning",
			Name:      "saga_duration_seconds",
			Help:      "Duration of provisioning sagas.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dx",
			Subsystem: "reconciler",
			Name:      "removed_total",
			Help:      "Dangling objects removed by the reconciliation sweep.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.sagaRuns, m.sagaFailures, m.sagaDuration, m.sweepRemoved} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observeSaga records one saga outcome. Safe on a nil receiver.
func (m *Metrics) observeSaga(result SagaResult, steps []Step, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sagaDuration.WithLabelValues(result.Operation).Observe(elapsed.Seconds())
	if result.OK() {
		m.sagaRuns.WithLabelValues(result.Operation, "success").Inc()
		return
	}
	m.sagaRuns.WithLabelValues(result.Operation, CodeOf(result.Err)).Inc()
	m.sagaFailures.WithLabelValues(result.Operation, steps[result.FailedStep].Name,
		strconv.Itoa(result.FailedStep)).Inc()
}

// observeSweep counts objects removed by the reconciler. Safe on a nil receiver.
func (m *Metrics) observeSweep(kind string, removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.sweepRemoved.WithLabelValues(kind).Add(float64(removed))
}
