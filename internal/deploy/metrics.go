package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-stage outcomes of one run. When a metrics file is
// configured the registry is written in textfile-collector format so the
// node exporter can expose the last run's results.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.GaugeVec
	stageSuccess  *prometheus.GaugeVec
	runSuccess    prometheus.Gauge
	runTimestamp  prometheus.Gauge
}

// NewMetrics builds a self-contained registry for one run.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "monitoring_deploy",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each deploy stage in seconds",
			},
			[]string{"stage"},
		),
		stageSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "monitoring_deploy",
				Name:      "stage_success",
				Help:      "Whether each deploy stage succeeded (1), was skipped (1), or failed (0)",
			},
			[]string{"stage"},
		),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "monitoring_deploy",
			Name:      "run_success",
			Help:      "Whether the whole deploy run succeeded",
		}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "monitoring_deploy",
			Name:      "run_timestamp_seconds",
			Help:      "Unix timestamp of the last deploy run",
		}),
	}

	m.registry.MustRegister(m.stageDuration, m.stageSuccess, m.runSuccess, m.runTimestamp)
	return m
}

// RecordStage stores one stage outcome.
func (m *Metrics) RecordStage(stage string, seconds float64, ok bool) {
	m.stageDuration.WithLabelValues(stage).Set(seconds)
	value := 0.0
	if ok {
		value = 1.0
	}
	m.stageSuccess.WithLabelValues(stage).Set(value)
}

// RecordRun stores the overall outcome.
func (m *Metrics) RecordRun(timestamp float64, ok bool) {
	m.runTimestamp.Set(timestamp)
	if ok {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
}

// WriteTextfile writes the registry to path in Prometheus textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
