package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "themebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg            *prom.Registry
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	themeDuration  *prom.HistogramVec
	composeResults *prom.CounterVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	buildBuckets := []float64{5, 15, 30, 60, 120, 300, 600, 1200}
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		themeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "theme_build_duration_seconds",
			Help:      "Duration of the external build subprocess per theme",
			Buckets:   buildBuckets,
		}, []string{"theme", "result"}),
		composeResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compose_results_total",
			Help:      "Tenant composition results",
		}, []string{"theme", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   buildBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by final status",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.themeDuration, pr.composeResults, pr.runDuration, pr.runOutcome)
	return pr
}

// Registry returns the registry the recorder's collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveThemeBuildDuration(theme string, d time.Duration, success bool) {
	p.themeDuration.WithLabelValues(theme, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncComposeResult(theme string, success bool) {
	p.composeResults.WithLabelValues(theme, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node-exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
