package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingsTotal *prometheus.CounterVec
	modelFailures  *prometheus.CounterVec
	modelWeight    *prometheus.GaugeVec
	confidence     *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_trainings_total",
				Help: "Total number of ensemble training runs",
			},
			[]string{"key", "success"},
		),
		modelFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_model_failures_total",
				Help: "Total number of per-model failures by stage",
			},
			[]string{"model", "stage"},
		),
		modelWeight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_model_weight",
				Help: "Current ensemble weight of a model",
			},
			[]string{"key", "model"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_forecast_confidence",
				Help: "Confidence score of the last forecast",
			},
			[]string{"key"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTraining(key string, success bool) {
	r.trainingsTotal.WithLabelValues(key, strconv.FormatBool(success)).Inc()
}

func (r *Recorder) RecordModelFailure(model, stage string) {
	r.modelFailures.WithLabelValues(model, stage).Inc()
}

func (r *Recorder) RecordModelWeight(key, model string, weight float64) {
	r.modelWeight.WithLabelValues(key, model).Set(weight)
}

func (r *Recorder) RecordConfidence(key string, confidence float64) {
	r.confidence.WithLabelValues(key).Set(confidence)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
