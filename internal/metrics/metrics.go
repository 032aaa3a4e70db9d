// Package metrics records run counters and pushes them to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Recorder holds one batch run's metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	predictionsIssued     *prometheus.CounterVec
	predictionsReconciled *prometheus.CounterVec
	predictionsCorrect    *prometheus.CounterVec
	runFailures           *prometheus.CounterVec
	accuracy              *prometheus.GaugeVec
	lastSuccess           *prometheus.GaugeVec
	runDuration           *prometheus.HistogramVec
}

// New returns a Recorder with all series registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		predictionsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gameoracle_predictions_issued_total",
			Help: "Total number of predictions issued",
		}, []string{"sport"}),
		predictionsReconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gameoracle_predictions_reconciled_total",
			Help: "Total number of predictions reconciled against final scores",
		}, []string{"sport"}),
		predictionsCorrect: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gameoracle_predictions_correct_total",
			Help: "Total number of reconciled predictions that picked the winner",
		}, []string{"sport"}),
		runFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gameoracle_run_failures_total",
			Help: "Total number of failed runs by stage",
		}, []string{"sport", "stage"}),
		accuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gameoracle_accuracy_percent",
			Help: "Cumulative prediction accuracy",
		}, []string{"sport"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gameoracle_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}, []string{"sport"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gameoracle_run_duration_seconds",
			Help:    "Duration of a sport's daily run",
			Buckets: prometheus.DefBuckets,
		}, []string{"sport"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) PredictionsIssued(sport models.Sport, n int) {
	r.predictionsIssued.WithLabelValues(string(sport)).Add(float64(n))
}

// Reconciled records newly reconciled predictions and the updated cumulative accuracy.
func (r *Recorder) Reconciled(sport models.Sport, reconciled, correct int, accuracyPct float64) {
	r.predictionsReconciled.WithLabelValues(string(sport)).Add(float64(reconciled))
	r.predictionsCorrect.WithLabelValues(string(sport)).Add(float64(correct))
	r.accuracy.WithLabelValues(string(sport)).Set(accuracyPct)
}

// RunFailed counts a failed run. An empty stage is reported as "unknown".
func (r *Recorder) RunFailed(sport models.Sport, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	r.runFailures.WithLabelValues(string(sport), stage).Inc()
}

func (r *Recorder) RunSucceeded(sport models.Sport, at time.Time, took time.Duration) {
	r.lastSuccess.WithLabelValues(string(sport)).Set(float64(at.Unix()))
	r.runDuration.WithLabelValues(string(sport)).Observe(took.Seconds())
}

// Push sends the registry to the Pushgateway at url under job. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
