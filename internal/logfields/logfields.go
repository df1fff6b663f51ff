package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyProject    = "project"
	KeyTheme      = "theme"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyBytes      = "bytes"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func Theme(t string) slog.Attr        { return slog.String(KeyTheme, t) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration renders d as fractional milliseconds under KeyDurationMS.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
