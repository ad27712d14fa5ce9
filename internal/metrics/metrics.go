// Package metrics collects migration run metrics and pushes them to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Bidon15/university-deployer/internal/migration"
)

const namespace = "university_deployer"

// Collector records migration steps on its own registry.
type Collector struct {
	registry *prometheus.Registry

	deploymentsTotal *prometheus.CounterVec
	gasUsed          *prometheus.HistogramVec
	deployDuration   *prometheus.HistogramVec
	lastSuccess      *prometheus.GaugeVec
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		deploymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Contract deployments by contract and status",
			},
			[]string{"contract", "status"},
		),
		gasUsed: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gas_used",
				Help:      "Gas used by contract creation transactions",
				Buckets:   prometheus.ExponentialBuckets(100_000, 2, 8),
			},
			[]string{"contract"},
		),
		deployDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of a migration step, from building its transaction to the confirmed deployment",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"contract"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_step",
				Help:      "Number of the last migration step that succeeded",
			},
			[]string{"network"},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordStep implements migration.Recorder.
func (c *Collector) RecordStep(_ context.Context, step migration.Step) error {
	status := "success"
	switch {
	case step.Err != nil:
		status = "failed"
	case step.Result != nil && step.Result.DryRun:
		status = "dry_run"
	}
	c.deploymentsTotal.WithLabelValues(step.Contract, status).Inc()

	if status != "success" {
		return nil
	}
	c.gasUsed.WithLabelValues(step.Contract).Observe(float64(step.Result.GasUsed))
	c.deployDuration.WithLabelValues(step.Contract).Observe(step.Duration.Seconds())
	return nil
}

// SetLastStep records the last successful step for network.
func (c *Collector) SetLastStep(network string, number int) {
	c.lastSuccess.WithLabelValues(network).Set(float64(number))
}

// Push sends the registry to the Pushgateway at url under job, grouped by
// network. An empty url is a no-op.
func (c *Collector) Push(ctx context.Context, url, job, network string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(c.registry).
		Grouping("network", network).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

var _ migration.Recorder = (*Collector)(nil)
