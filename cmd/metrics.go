package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

// runMetrics records check outcomes for one run. It is a suite.Observer.
type runMetrics struct {
	registry  *prometheus.Registry
	checks    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	scenarios *prometheus.CounterVec
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dqe",
			Name:      "checks_total",
			Help:      "Checks run, by type and status.",
		}, []string{"type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dqe",
			Name:      "check_duration_seconds",
			Help:      "Time spent evaluating one check.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"type"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dqe",
			Name:      "scenarios_total",
			Help:      "Scenarios run, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.checks, m.duration, m.scenarios)
	return m
}

func (m *runMetrics) CheckFinished(_ string, r suite.CheckResult) {
	m.checks.WithLabelValues(string(r.Type), string(r.Status)).Inc()
	m.duration.WithLabelValues(string(r.Type)).Observe(r.Duration.Seconds())
}

func (m *runMetrics) ScenarioFinished(r suite.ScenarioResult) {
	outcome := "passed"
	if !r.Passed() {
		outcome = "failed"
	}
	m.scenarios.WithLabelValues(outcome).Inc()
}

// push sends the collected metrics to a Prometheus pushgateway.
func (m *runMetrics) push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
