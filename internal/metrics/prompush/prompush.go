// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Batch jobs do not live long enough to be scraped, so the
// registry is pushed on Flush.
package prompush

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"movieetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend. The job label is the
// Pushgateway grouping key and is not repeated on each series.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	recordCounter *prometheus.CounterVec
	commitCounter *prometheus.CounterVec
	quality       *prometheus.GaugeVec
}

// NewBackend constructs a Pushgateway backend. jobName defaults to "etl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows per dataset and kind (read, dropped, written).",
		}, []string{"dataset", "kind"}),
		commitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CommitsTotal,
			Help: "Commits written per storage location.",
		}, []string{"location"}),
		quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.QualityGauge,
			Help: "Latest value of each data quality check.",
		}, []string{"check"}),
	}
	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.recordCounter, b.commitCounter, b.quality} {
		if err := b.reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "prompush: register")
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["dataset"], labels["kind"]).Add(delta)
	case metrics.CommitsTotal:
		b.commitCounter.WithLabelValues(labels["location"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name != metrics.QualityGauge {
		return
	}
	b.quality.WithLabelValues(labels["check"]).Set(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return errors.Wrap(err, "prompush: push")
	}
	return nil
}
