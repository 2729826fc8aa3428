// Package metrics provides Prometheus metrics collection for the training
// pipeline and the scoring service. Metrics are exposed via the Prometheus
// endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline and scoring service.
type Metrics struct {
	// Training pipeline metrics
	TrainingRuns     prometheus.Counter   // Total number of training runs started
	TrainingFailures prometheus.Counter   // Total number of training runs that aborted
	TrainingDuration prometheus.Histogram // Wall clock duration of a training run
	TrainingRows     prometheus.Gauge     // Labeled rows used by the most recent run
	BestF1           prometheus.Gauge     // Holdout F1 of the selected variant
	BestAUC          prometheus.Gauge     // Holdout ROC AUC of the selected variant
	VariantsTrained  prometheus.Gauge     // Variants that trained successfully in the last run
	VariantsSkipped  prometheus.Counter   // Total variants skipped due to training failure

	// Record ingestion metrics
	RecordsLoaded   prometheus.Counter // Total records read from all sources
	RecordsRejected prometheus.Counter // Total records dropped for missing labels

	// Scoring service metrics
	Predictions        prometheus.Counter   // Total single and batch predictions served
	PredictionFailures prometheus.Counter   // Total prediction requests that failed
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	PredictionScores   prometheus.Histogram // Distribution of served win probabilities
	BatchSize          prometheus.Histogram // Games per batch prediction request
	ModelAge           prometheus.Gauge     // Age of the loaded artifact set in seconds

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
// This is the standard way to create metrics for production use.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training runs started",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of training runs that aborted before persisting models",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Wall clock duration of a training run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_rows",
			Help: "Labeled rows used by the most recent training run",
		}),
		BestF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "best_model_f1",
			Help: "Holdout F1 score of the selected model variant",
		}),
		BestAUC: factory.NewGauge(prometheus.GaugeOpts{
			Name: "best_model_auc",
			Help: "Holdout ROC AUC of the selected model variant",
		}),
		VariantsTrained: factory.NewGauge(prometheus.GaugeOpts{
			Name: "variants_trained",
			Help: "Model variants that trained successfully in the last run",
		}),
		VariantsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "variants_skipped_total",
			Help: "Total model variants skipped due to training failure",
		}),
		RecordsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "records_loaded_total",
			Help: "Total prediction records read from all sources",
		}),
		RecordsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "records_rejected_total",
			Help: "Total prediction records dropped for missing outcome labels",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total single and batch predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total prediction requests that failed",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of served win probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_batch_size",
			Help:    "Games per batch prediction request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded artifact set in seconds",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
