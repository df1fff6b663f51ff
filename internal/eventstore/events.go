package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted        = "RunStarted"
	TypeConfigSynthesized = "ConfigSynthesized"
	TypeThemeBuilt        = "ThemeBuilt"
	TypeTenantComposed    = "TenantComposed"
	TypeConfigRestored    = "ConfigRestored"
	TypeRunFinished       = "RunFinished"
)

// RunStartedPayload describes what a run is about to build.
type RunStartedPayload struct {
	Project string   `json:"project"`
	Themes  []string `json:"themes"`
	Commit  string   `json:"commit,omitempty"`
	Branch  string   `json:"branch,omitempty"`
}

// ConfigSynthesizedPayload lists the configuration entries a run added.
type ConfigSynthesizedPayload struct {
	Added []string `json:"added"`
}

// ThemeBuiltPayload records one build subprocess.
type ThemeBuiltPayload struct {
	Theme      string `json:"theme"`
	DurationMS int64  `json:"duration_ms"`
	ExitCode   int    `json:"exit_code"`
	Success    bool   `json:"success"`
}

// TenantComposedPayload records one composed tenant output.
type TenantComposedPayload struct {
	Theme   string `json:"theme"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"bytes"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConfigRestoredPayload records the restoration of the global configuration.
type ConfigRestoredPayload struct {
	Path string `json:"path"`
}

// RunFinishedPayload closes a run.
type RunFinishedPayload struct {
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newEvent(runID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, p RunStartedPayload) (*BaseEvent, error) {
	return newEvent(runID, TypeRunStarted, p)
}

// NewConfigSynthesized creates a ConfigSynthesized event.
func NewConfigSynthesized(runID string, added []string) (*BaseEvent, error) {
	if added == nil {
		added = []string{}
	}
	return newEvent(runID, TypeConfigSynthesized, ConfigSynthesizedPayload{Added: added})
}

// NewThemeBuilt creates a ThemeBuilt event.
func NewThemeBuilt(runID, theme string, duration time.Duration, exitCode int) (*BaseEvent, error) {
	return newEvent(runID, TypeThemeBuilt, ThemeBuiltPayload{
		Theme:      theme,
		DurationMS: duration.Milliseconds(),
		ExitCode:   exitCode,
		Success:    exitCode == 0,
	})
}

// NewTenantComposed creates a TenantComposed event. A non-nil composeErr marks it failed.
func NewTenantComposed(runID, theme string, files int, bytes int64, composeErr error) (*BaseEvent, error) {
	p := TenantComposedPayload{Theme: theme, Files: files, Bytes: bytes, Success: composeErr == nil}
	if composeErr != nil {
		p.Error = composeErr.Error()
	}
	return newEvent(runID, TypeTenantComposed, p)
}

// NewConfigRestored creates a ConfigRestored event.
func NewConfigRestored(runID, path string) (*BaseEvent, error) {
	return newEvent(runID, TypeConfigRestored, ConfigRestoredPayload{Path: path})
}

// NewRunFinished creates a RunFinished event.
func NewRunFinished(runID, outcome string, duration time.Duration, stage string, runErr error) (*BaseEvent, error) {
	p := RunFinishedPayload{Outcome: outcome, DurationMS: duration.Milliseconds(), Stage: stage}
	if runErr != nil {
		p.Error = runErr.Error()
	}
	return newEvent(runID, TypeRunFinished, p)
}
