package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "precondition", err: PreconditionError("missing --project option").Build(), expected: 2},
		{name: "config", err: ConfigError("bad yaml").Build(), expected: 7},
		{name: "build failure", err: BuildFailure("ng build failed").Build(), expected: 11},
		{name: "missing artifact", err: MissingArtifactError("no stats.json").Build(), expected: 11},
		{name: "restore failure", err: RestoreFailure("restore angular.json").Build(), expected: 13},
		{name: "canceled", err: CanceledError("interrupted").Build(), expected: 130},
		{name: "wrapped build failure", err: fmt.Errorf("run: %w", BuildFailure("x").Build()), expected: 11},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := BuildFailure("build subprocess failed").
		WithContext("theme", "acme").
		WithContext("exit_code", 2).
		Build()

	quiet := NewCLIErrorAdapter(false, slog.Default()).FormatError(err)
	if quiet != "Error: build subprocess failed exit_code=2 theme=acme" {
		t.Errorf("unexpected quiet format: %q", quiet)
	}

	verbose := NewCLIErrorAdapter(true, slog.Default()).FormatError(err)
	if !strings.Contains(verbose, "[build:fatal]") {
		t.Errorf("expected verbose format to include classification, got %q", verbose)
	}

	if got := NewCLIErrorAdapter(false, nil).FormatError(nil); got != "" {
		t.Errorf("expected empty string for nil error, got %q", got)
	}
}
