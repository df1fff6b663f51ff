// Package eventstore journals pipeline runs in SQLite and rebuilds run
// summaries from the journal.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// RunStatusRunning marks a run without a RunFinished event.
const RunStatusRunning = "running"

// RunSummary is a read model of one run.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Project     string           `json:"project"`
	Themes      []string         `json:"themes"`
	Commit      string           `json:"commit,omitempty"`
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Added       []string         `json:"added,omitempty"`
	Builds      map[string]int64 `json:"builds_ms,omitempty"`
	Composed    []string         `json:"composed,omitempty"`
	Failed      []string         `json:"failed,omitempty"`
	Restored    bool             `json:"restored"`
	ErrorStage  string           `json:"error_stage,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// RunHistoryProjection rebuilds run summaries from stored events.
type RunHistoryProjection struct {
	mu    sync.RWMutex
	store Store
	runs  map[string]*RunSummary
}

// NewRunHistoryProjection creates a projection backed by store.
func NewRunHistoryProjection(store Store) *RunHistoryProjection {
	return &RunHistoryProjection{store: store, runs: make(map[string]*RunSummary)}
}

// Rebuild reconstructs the projection from every stored event.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = make(map[string]*RunSummary)
	for _, event := range events {
		p.applyLocked(event)
	}
	return nil
}

// Apply processes a single event.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(event)
}

func (p *RunHistoryProjection) applyLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	summary, ok := p.runs[runID]
	if !ok {
		summary = &RunSummary{RunID: runID, Status: RunStatusRunning, StartedAt: event.Timestamp()}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		var payload RunStartedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Project = payload.Project
			summary.Themes = payload.Themes
			summary.Commit = payload.Commit
		}
		summary.StartedAt = event.Timestamp()

	case TypeConfigSynthesized:
		var payload ConfigSynthesizedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Added = payload.Added
		}

	case TypeThemeBuilt:
		var payload ThemeBuiltPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Success {
			if summary.Builds == nil {
				summary.Builds = make(map[string]int64)
			}
			summary.Builds[payload.Theme] = payload.DurationMS
		}

	case TypeTenantComposed:
		var payload TenantComposedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Success {
				summary.Composed = append(summary.Composed, payload.Theme)
			} else {
				summary.Failed = append(summary.Failed, payload.Theme)
			}
		}

	case TypeConfigRestored:
		summary.Restored = true

	case TypeRunFinished:
		var payload RunFinishedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.Outcome
			summary.ErrorStage = payload.Stage
			summary.Error = payload.Error
		}
		done := event.Timestamp()
		summary.CompletedAt = &done
		summary.Duration = done.Sub(summary.StartedAt)
	}
}

// Runs returns run summaries, newest first, at most limit (all when limit <= 0).
func (p *RunHistoryProjection) Runs(limit int) []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Run returns the summary of one run.
func (p *RunHistoryProjection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}
