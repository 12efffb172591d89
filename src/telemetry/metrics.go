package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	LabelStage   = "stage"
	LabelSuccess = "success"
)

// Metrics records stage outcomes in a private registry that can be pushed
// to a Prometheus Pushgateway when the job ends.
type Metrics struct {
	Registry      *stdprometheus.Registry
	StageDuration metrics.Histogram
	StageRuns     metrics.Counter
}

// NewMetrics creates the stage metrics.
func NewMetrics() *Metrics {
	reg := stdprometheus.NewRegistry()

	duration := stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "edgefreight",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Stage duration in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{LabelStage, LabelSuccess})

	runs := stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: "edgefreight",
		Subsystem: "pipeline",
		Name:      "stage_runs_total",
		Help:      "Stage runs by outcome.",
	}, []string{LabelStage, LabelSuccess})

	reg.MustRegister(duration, runs)

	return &Metrics{
		Registry:      reg,
		StageDuration: prometheus.NewHistogram(duration),
		StageRuns:     prometheus.NewCounter(runs),
	}
}

// Observe records one finished stage.
func (m *Metrics) Observe(stage string, success bool, d time.Duration) {
	labels := []string{LabelStage, stage, LabelSuccess, fmt.Sprint(success)}
	m.StageDuration.With(labels...).Observe(d.Seconds())
	m.StageRuns.With(labels...).Add(1)
}

// Push sends the registry to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, gateway, job string) error {
	if err := push.New(gateway, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gateway, err)
	}
	return nil
}
