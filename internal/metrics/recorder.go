package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// RunOutcomeLabel enumerates the final status of a pipeline run.
type RunOutcomeLabel string

const (
	RunOutcomeSuccess  RunOutcomeLabel = "success"
	RunOutcomeFailed   RunOutcomeLabel = "failed"
	RunOutcomeCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for pipeline, build and composition metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveThemeBuildDuration(theme string, d time.Duration, success bool)
	IncComposeResult(theme string, success bool)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)            {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                    {}
func (NoopRecorder) ObserveThemeBuildDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncComposeResult(string, bool)                         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                      {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)                         {}
