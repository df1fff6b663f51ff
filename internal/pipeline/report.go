package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID          string
	Project        string
	Commit         string
	Start          time.Time
	End            time.Time
	Themes         []string
	Added          []string
	StageDurations map[StageName]time.Duration
	BuildDurations map[string]time.Duration
	Composed       []string
	FailedTenants  []string
	FailedStage    StageName
	Outcome        Outcome
	Err            error
}

func newReport(runID, project string) *RunReport {
	return &RunReport{
		RunID:          runID,
		Project:        project,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		BuildDurations: make(map[string]time.Duration),
	}
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Summary returns a one-line human readable summary.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("run=%s outcome=%s themes=%d composed=%d failed=%d duration=%s",
		r.RunID, r.Outcome, len(r.Themes), len(r.Composed), len(r.FailedTenants), r.Duration().Round(time.Millisecond))
}

type reportJSON struct {
	RunID            string           `json:"run_id"`
	Project          string           `json:"project"`
	Commit           string           `json:"commit,omitempty"`
	Start            time.Time        `json:"start"`
	End              time.Time        `json:"end"`
	Themes           []string         `json:"themes"`
	Added            []string         `json:"added,omitempty"`
	StageDurationsMS map[string]int64 `json:"stage_durations_ms"`
	BuildDurationsMS map[string]int64 `json:"build_durations_ms"`
	Composed         []string         `json:"composed"`
	FailedTenants    []string         `json:"failed_tenants,omitempty"`
	FailedStage      string           `json:"failed_stage,omitempty"`
	Outcome          Outcome          `json:"outcome"`
	Error            string           `json:"error,omitempty"`
}

// MarshalJSON renders durations in milliseconds and the error as text.
func (r *RunReport) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		RunID:            r.RunID,
		Project:          r.Project,
		Commit:           r.Commit,
		Start:            r.Start,
		End:              r.End,
		Themes:           r.Themes,
		Added:            r.Added,
		StageDurationsMS: make(map[string]int64, len(r.StageDurations)),
		BuildDurationsMS: make(map[string]int64, len(r.BuildDurations)),
		Composed:         r.Composed,
		FailedTenants:    r.FailedTenants,
		FailedStage:      string(r.FailedStage),
		Outcome:          r.Outcome,
	}
	for k, v := range r.StageDurations {
		out.StageDurationsMS[string(k)] = v.Milliseconds()
	}
	for k, v := range r.BuildDurations {
		out.BuildDurationsMS[k] = v.Milliseconds()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
